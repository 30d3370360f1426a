package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/internal/converter"
	"github.com/Qwejay/Qconverto/models"
)

type toolView struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

type detectView struct {
	Tools          []toolView            `json:"tools"`
	VulkanCompiled bool                  `json:"vulkan_compiled"`
	VulkanError    string                `json:"vulkan_error,omitempty"`
	Vulkan         bool                  `json:"vulkan_supported"`
	Selected       *models.VulkanDevice  `json:"selected_device,omitempty"`
	Devices        []models.VulkanDevice `json:"devices"`
	OS             string                `json:"os"`
	Arch           string                `json:"arch"`
	CPUs           int                   `json:"cpus"`
}

func newDetectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report external tools and GPU capabilities",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			tools := converter.ResolveTools(a.cfg.Tools)
			view := detectView{
				Tools: []toolView{
					{Name: "ffmpeg", Path: tools.FFmpeg, Available: tools.FFmpeg != ""},
					{Name: "ffprobe", Path: tools.FFprobe, Available: tools.FFprobe != ""},
					{Name: "libreoffice", Path: tools.Soffice, Available: tools.Soffice != ""},
				},
				VulkanCompiled: converter.VulkanCompiled,
				OS:             runtime.GOOS,
				Arch:           runtime.GOARCH,
				CPUs:           runtime.NumCPU(),
			}

			detector := converter.NewVulkanDetector(a.cfg.Vulkan.PreferredDevice, a.cfg.Vulkan.EnableValidation)
			caps, err := detector.DetectVulkanCapabilities()
			if err != nil {
				view.VulkanError = err.Error()
			} else if caps != nil {
				view.Vulkan = caps.Supported
				view.Devices = caps.Devices
				if caps.Supported {
					dev := caps.Device
					view.Selected = &dev
				}
			}

			if !a.out.IsTable() {
				return a.out.PrintJSON(view)
			}
			a.printDetect(view)
			return nil
		},
	}
}

func (a *app) printDetect(v detectView) {
	w := a.stdout
	_, _ = fmt.Fprintln(w, boldText("External tools"))
	for i, t := range v.Tools {
		branch := "├─"
		if i == len(v.Tools)-1 {
			branch = "└─"
		}
		detail := t.Name
		if t.Available {
			detail += " " + dimText(t.Path)
		} else {
			detail += " " + dimText("not found")
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", branch, availability(t.Available, detail))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, boldText("GPU / Vulkan"))
	switch {
	case !v.VulkanCompiled:
		_, _ = fmt.Fprintf(w, "└─ %s\n", availability(false, "not compiled in (build with -tags vulkan)"))
	case v.VulkanError != "":
		_, _ = fmt.Fprintf(w, "└─ %s\n", availability(false, v.VulkanError))
	case len(v.Devices) == 0:
		_, _ = fmt.Fprintf(w, "└─ %s\n", availability(false, "no devices detected"))
	default:
		for i, dev := range v.Devices {
			branch, stem := "├─", "│ "
			if i == len(v.Devices)-1 {
				branch, stem = "└─", "  "
			}
			name := dev.Name
			if v.Selected != nil && v.Selected.DeviceID == dev.DeviceID && v.Selected.VendorID == dev.VendorID {
				name += " " + okMark("(selected)")
			}
			_, _ = fmt.Fprintf(w, "%s %s\n", branch, name)
			_, _ = fmt.Fprintf(w, "%s ├─ Type: %s\n", stem, dev.Type)
			_, _ = fmt.Fprintf(w, "%s └─ Driver Version: %s\n", stem, dev.DriverVersion)
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, boldText("Environment"))
	_, _ = fmt.Fprintf(w, "├─ OS: %s\n", v.OS)
	_, _ = fmt.Fprintf(w, "├─ Architecture: %s\n", v.Arch)
	_, _ = fmt.Fprintf(w, "└─ CPUs: %d\n", v.CPUs)
}
