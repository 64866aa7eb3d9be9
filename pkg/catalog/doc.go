// Package catalog holds the purchasable pack catalog.
//
// Static pack metadata (item type, value, name, art asset, tag) comes from a
// Loader: a YAML file, a Postgres table or an in-memory list. The live store
// contributes display prices. Catalog merges both and publishes every
// change as a new immutable snapshot, so readers never observe a partially
// merged catalog.
//
// Packs returns the statically known packs in display order (ascending
// price after SortByPrice). Store products without static metadata are
// reachable by id through Pack and Contains only.
package catalog
