//go:build vulkan

package converter

import (
	"fmt"

	vk "github.com/darkace1998/golang-vulkan-api"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// VulkanCompiled reports whether the binary was built with the vulkan tag.
const VulkanCompiled = true

const (
	vulkanValidationLayer = "VK_LAYER_KHRONOS_validation"
	extVideoEncode        = "VK_KHR_video_encode_queue"
	extVideoDecode        = "VK_KHR_video_decode_queue"
	vendorNVIDIA          = 0x10DE
)

// VulkanDetector enumerates Vulkan devices through the loader.
type VulkanDetector struct {
	preferredDevice  string
	enableValidation bool
	log              *utils.ComponentLogger
}

// NewVulkanDetector creates a detector preferring devices whose name contains preferredDevice.
func NewVulkanDetector(preferredDevice string, enableValidation bool) *VulkanDetector {
	return &VulkanDetector{
		preferredDevice:  preferredDevice,
		enableValidation: enableValidation,
		log:              utils.NewComponentLogger("gpu"),
	}
}

func (vd *VulkanDetector) createInstance() (vk.Instance, error) {
	info := &vk.InstanceCreateInfo{
		ApplicationInfo: &vk.ApplicationInfo{
			ApplicationName:    "Qconverto",
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			EngineName:         "No Engine",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			APIVersion:         vk.Version13,
		},
	}

	if vd.enableValidation {
		layers, err := vk.EnumerateInstanceLayerProperties()
		if err != nil {
			vd.log.Warn("Failed to enumerate Vulkan layers", "error", err)
		}
		for _, l := range layers {
			if l.LayerName == vulkanValidationLayer {
				info.EnabledLayerNames = []string{vulkanValidationLayer}
				break
			}
		}
		if len(info.EnabledLayerNames) == 0 {
			vd.log.Warn("Vulkan validation layers requested but not available")
		}
	}

	instance, err := vk.CreateInstance(info)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vulkan instance: %w", err)
	}
	return instance, nil
}

// DetectVulkanCapabilities selects a device and reports its video capabilities.
// Missing drivers or devices are reported as unsupported, not as errors.
func (vd *VulkanDetector) DetectVulkanCapabilities() (*VulkanCapabilities, error) {
	caps := &VulkanCapabilities{}

	instance, err := vd.createInstance()
	if err != nil {
		vd.log.Warn("Vulkan unavailable, hardware encoding disabled", "error", err)
		return caps, nil
	}
	defer vk.DestroyInstance(instance)

	physical, err := vk.EnumeratePhysicalDevices(instance)
	if err != nil || len(physical) == 0 {
		vd.log.Warn("No Vulkan devices found, hardware encoding disabled", "error", err)
		return caps, nil
	}

	handles := make(map[string]vk.PhysicalDevice, len(physical))
	for _, pd := range physical {
		dev := describeDevice(pd)
		caps.Devices = append(caps.Devices, dev)
		handles[dev.Name] = pd
	}

	device := selectDeviceWithPreference(caps.Devices, vd.preferredDevice)
	if !device.Available {
		vd.log.Warn("Selected Vulkan device lacks graphics and compute queues", "device", device.Name)
		return caps, nil
	}
	caps.Device = device
	caps.Supported = true

	pd := handles[device.Name]
	props := vk.GetPhysicalDeviceProperties(pd)
	caps.APIVersion = fmt.Sprintf("%d.%d.%d", props.APIVersion.Major(), props.APIVersion.Minor(), props.APIVersion.Patch())

	if exts, err := vk.EnumerateDeviceExtensionProperties(pd, ""); err == nil {
		for _, ext := range exts {
			caps.Extensions = append(caps.Extensions, ext.ExtensionName)
			switch ext.ExtensionName {
			case extVideoEncode:
				caps.CanEncode = true
			case extVideoDecode:
				caps.CanDecode = true
			}
		}
	}
	// ffmpeg's Vulkan filters work without the video queue extensions
	if !caps.CanEncode && !caps.CanDecode {
		caps.CanEncode, caps.CanDecode = true, true
	}

	vd.log.Info("Vulkan device detected",
		"name", device.Name,
		"type", device.Type,
		"driver_version", device.DriverVersion,
		"api_version", caps.APIVersion,
	)
	return caps, nil
}

func describeDevice(pd vk.PhysicalDevice) models.VulkanDevice {
	props := vk.GetPhysicalDeviceProperties(pd)

	var graphics, compute bool
	for _, qf := range vk.GetPhysicalDeviceQueueFamilyProperties(pd) {
		graphics = graphics || qf.QueueFlags&vk.QueueGraphicsBit != 0
		compute = compute || qf.QueueFlags&vk.QueueComputeBit != 0
	}

	return models.VulkanDevice{
		Name:          props.DeviceName,
		Type:          mapVulkanDeviceType(props.DeviceType),
		DeviceID:      props.DeviceID,
		VendorID:      props.VendorID,
		DriverVersion: driverVersion(props.VendorID, uint32(props.DriverVersion)),
		Available:     graphics && compute,
	}
}

// driverVersion decodes the vendor-specific packed driver version.
func driverVersion(vendorID, v uint32) string {
	if vendorID == vendorNVIDIA {
		return fmt.Sprintf("%d.%d.%d.%d", (v>>22)&0x3FF, (v>>14)&0xFF, (v>>6)&0xFF, v&0x3F)
	}
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3FF, v&0xFFF)
}

func mapVulkanDeviceType(t vk.PhysicalDeviceType) string {
	switch t {
	case 1:
		return constants.VulkanDeviceTypeDiscrete
	case 2:
		return constants.VulkanDeviceTypeIntegrated
	case 3:
		return constants.VulkanDeviceTypeVirtual
	case 4:
		return constants.VulkanDeviceTypeCPU
	default:
		return constants.VulkanDeviceTypeIntegrated
	}
}
