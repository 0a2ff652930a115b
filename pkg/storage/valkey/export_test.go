package storagevalkey

func (s *Store) Key(key string) string { return s.key(key) }
func (s *Store) Prefix() string        { return s.prefix }
