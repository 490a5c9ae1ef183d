package memorystore

import (
	"testing"

	"github.com/apporbit/apporbit/storage"
	"github.com/apporbit/apporbit/storage/storagetests"
)

func TestMemoryStore(t *testing.T) {
	storagetests.Run(t, func() storage.Store {
		return New()
	})
}
