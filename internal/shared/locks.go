package shared

import "fmt"

// CollectionLockKey builds redis keys guarding a collection file rewrite.
func CollectionLockKey(collection string) string {
	return fmt.Sprintf("records:collection:%s:lock", collection)
}
