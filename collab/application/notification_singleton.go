package application

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalCenterMu sync.Mutex
	globalCenter   *NotificationCenter
)

// InitNotificationCenter creates the session-wide center. Calling it again
// before TeardownNotificationCenter returns the existing instance.
func InitNotificationCenter(opts NotificationCenterOptions) *NotificationCenter {
	globalCenterMu.Lock()
	defer globalCenterMu.Unlock()
	if globalCenter == nil {
		globalCenter = NewNotificationCenter(opts)
		logrus.Infof("[NOTIFY] Notification center started (capacity %d)", globalCenter.capacity)
	}
	return globalCenter
}

// GlobalNotificationCenter returns the session-wide center, or nil before
// InitNotificationCenter.
func GlobalNotificationCenter() *NotificationCenter {
	globalCenterMu.Lock()
	defer globalCenterMu.Unlock()
	return globalCenter
}

// TeardownNotificationCenter drops the session-wide center at session end.
func TeardownNotificationCenter() {
	globalCenterMu.Lock()
	defer globalCenterMu.Unlock()
	if globalCenter != nil {
		globalCenter.ClearAll()
		globalCenter = nil
		logrus.Info("[NOTIFY] Notification center stopped")
	}
}
