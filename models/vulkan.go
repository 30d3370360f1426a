package models

// VulkanDevice represents information about a Vulkan-capable GPU device.
type VulkanDevice struct {
	Name          string `json:"name"           yaml:"name"`
	Type          string `json:"type"           yaml:"type"` // see constants.VulkanDeviceType* constants
	DeviceID      uint32 `json:"device_id"      yaml:"device_id"`
	VendorID      uint32 `json:"vendor_id"      yaml:"vendor_id"`
	DriverVersion string `json:"driver_version" yaml:"driver_version"`
	Available     bool   `json:"available"      yaml:"available"`
}
