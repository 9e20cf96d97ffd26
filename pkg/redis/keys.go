package redis

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	keyPrefix     = "orgmap"
	keySeparator  = ":"
	keyHashLength = 12
)

// Keyspace names the cached reads of one table:
//
//	orgmap:<database>:<table>:<operation>[:<suffix>]
//
// Database keeps tables of the same name in different databases apart.
type Keyspace struct {
	Database string
	Table    string
}

// Key returns the key for an operation, e.g. Key("find_by_id", "7")
func (k Keyspace) Key(operation string, suffix ...string) string {
	parts := append([]string{keyPrefix, k.Database, k.Table, operation}, suffix...)
	return strings.Join(parts, keySeparator)
}

// globEscaper quotes the characters SCAN MATCH treats as wildcards
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Pattern matches every key of the table and nothing else, whatever
// characters the database or table name contains.
func (k Keyspace) Pattern() string {
	parts := []string{keyPrefix, globEscaper.Replace(k.Database), globEscaper.Replace(k.Table), "*"}
	return strings.Join(parts, keySeparator)
}

// QueryKey returns a short key for a filtered read, hashed from its
// statement and bound arguments.
func (k Keyspace) QueryKey(operation, query string, args []interface{}) string {
	digest := xxhash.New()
	_, _ = digest.WriteString(query)

	encoded, err := msgpack.Marshal(args)
	if err != nil {
		encoded = []byte(fmt.Sprint(args...))
	}
	_, _ = digest.Write(encoded)

	sum := fmt.Sprintf("%016x", digest.Sum64())
	return k.Key(operation, sum[:keyHashLength])
}
