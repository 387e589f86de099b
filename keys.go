package filtercache

// Keyspace derives every store key from one namespace.
type Keyspace struct{ ns string }

func NewKeyspace(namespace string) Keyspace { return Keyspace{ns: namespace} }

func (s Keyspace) Namespace() string { return s.ns }

// Marker is the single slot holding the FilterKey of the last population.
func (s Keyspace) Marker() string { return s.ns + ":marker" }

// Entry returns the rows and total keys of one CacheEntry.
func (s Keyspace) Entry(k FilterKey) Entry {
	return Entry{
		Key:   k,
		Rows:  s.ns + ":rows:" + string(k),
		Total: s.ns + ":total:" + string(k),
	}
}

// Entry ties the sequence key and the count key of one FilterKey together.
// Always obtain it from Keyspace.Entry.
type Entry struct {
	Key   FilterKey
	Rows  string
	Total string
}

func (e Entry) StorageKeys() []string { return []string{e.Rows, e.Total} }
