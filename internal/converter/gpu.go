package converter

import (
	"strings"
	"sync"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// VulkanCapabilities describes the GPU selected for hardware-accelerated ffmpeg.
type VulkanCapabilities struct {
	Supported  bool
	Device     models.VulkanDevice
	Devices    []models.VulkanDevice
	APIVersion string
	Extensions []string
	CanEncode  bool
	CanDecode  bool
}

// GPUDetector reports Vulkan capabilities of the host.
type GPUDetector interface {
	DetectVulkanCapabilities() (*VulkanCapabilities, error)
}

// cachedGPU runs the detector once; device enumeration is slow and the answer never changes.
type cachedGPU struct {
	once sync.Once
	det  GPUDetector
	caps *VulkanCapabilities
	err  error
}

func (c *cachedGPU) get() (*VulkanCapabilities, error) {
	c.once.Do(func() {
		if c.det == nil {
			c.caps = &VulkanCapabilities{}
			return
		}
		c.caps, c.err = c.det.DetectVulkanCapabilities()
	})
	return c.caps, c.err
}

// selectDeviceWithPreference picks a device by case-insensitive name match, else discrete,
// then integrated, then any available device. With nothing available the first device is returned.
func selectDeviceWithPreference(devices []models.VulkanDevice, preference string) models.VulkanDevice {
	log := utils.NewComponentLogger("gpu")

	if preference != "" && preference != "auto" {
		want := strings.ToLower(preference)
		for _, dev := range devices {
			if dev.Available && strings.Contains(strings.ToLower(dev.Name), want) {
				return dev
			}
		}
		log.Warn("Preferred Vulkan device not available, falling back to auto-selection", "preferred_device", preference)
	}

	for _, kind := range []string{constants.VulkanDeviceTypeDiscrete, constants.VulkanDeviceTypeIntegrated} {
		for _, dev := range devices {
			if dev.Available && dev.Type == kind {
				return dev
			}
		}
	}
	for _, dev := range devices {
		if dev.Available {
			return dev
		}
	}
	if len(devices) > 0 {
		log.Warn("No available Vulkan devices, using first device", "device", devices[0].Name)
		return devices[0]
	}
	return models.VulkanDevice{}
}
