//go:build !vulkan

package converter

// VulkanCompiled reports whether the binary was built with the vulkan tag.
const VulkanCompiled = false

// VulkanDetector reports no GPU when Vulkan support is not compiled in.
type VulkanDetector struct {
	preferredDevice string
}

// NewVulkanDetector creates a detector; validation is ignored without Vulkan support.
func NewVulkanDetector(preferredDevice string, _ bool) *VulkanDetector {
	return &VulkanDetector{preferredDevice: preferredDevice}
}

// DetectVulkanCapabilities always reports Vulkan as unsupported.
func (vd *VulkanDetector) DetectVulkanCapabilities() (*VulkanCapabilities, error) {
	return &VulkanCapabilities{}, nil
}
