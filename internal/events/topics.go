package events

import "fmt"

// Topic prefixes for AssetForge event publishing.
//
// The hierarchy is flat: assetforge/{category}/{detail}. GUI instances
// subscribe to assetforge/inventory/# and refresh their item views on
// any message.
const (
	// TopicPrefix is the base for all AssetForge topics.
	TopicPrefix = "assetforge"

	// TopicPrefixInventory is the base for inventory change topics.
	TopicPrefixInventory = "assetforge/inventory"

	// TopicPrefixSystem is the base for system status topics.
	TopicPrefixSystem = "assetforge/system"
)

// Topics provides builders for AssetForge MQTT topics. Using these
// helpers keeps topic naming consistent across publisher and
// subscribers.
type Topics struct{}

// ItemChanged returns the topic for a committed item mutation.
//
// Example: assetforge/inventory/items/42
func (Topics) ItemChanged(itemID int64) string {
	return fmt.Sprintf("%s/items/%d", TopicPrefixInventory, itemID)
}

// SystemStatus returns the topic for publisher online/offline status.
//
// Example: assetforge/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
