package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STAFFLANE_TEST_MODE") == "" {
			_ = os.Setenv("STAFFLANE_TEST_MODE", "1")
		}
	})
}
