// README: Common identifier type shared across modules.
package types

// ID is an opaque record identifier. The store decides its shape
// (uuid, hex, numeric string); the core never parses it.
type ID string

func (id ID) String() string { return string(id) }
