package event

// Canonical event-type names emitted by the platform sources.
//
// Centralizing these keeps the ingest pipeline, rules policy, and
// phrase templates in sync when a source is renamed.
const (
	TypeNotificationPost = "notification.post"
	TypeMediaStart       = "media.start"
	TypeMediaStop        = "media.stop"
	TypeDisplayOn        = "display.on"
	TypeDisplayOff       = "display.off"
	TypeDeviceUnlock     = "device.unlock"
	TypeDeviceBoot       = "device.boot"
	TypeDeviceShutdown   = "device.shutdown"
	TypePowerConnected   = "power.connected"
	TypePowerDisconnect  = "power.disconnected"
	TypePowerCharging    = "power.charging.status"
)

// Canonical source component identifiers.
const (
	ComponentNotificationSource = "notification_source"
	ComponentMediaSource        = "media_source"
	ComponentSystemEventSource  = "system_event_source"
)
