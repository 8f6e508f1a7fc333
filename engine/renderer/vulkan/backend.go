package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type Options struct {
	ApplicationName string
	// Validation enables the Khronos layer and routes its reports to the log.
	Validation bool
}

// Device drives a window surface through a Vulkan instance, one logical
// device and its graphics queue.
type Device struct {
	context *VulkanContext
	window  *glfw.Window
	options Options
}

var _ gpu.Device = (*Device)(nil)

func NewDevice(window *glfw.Window, options Options) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing vulkan")
	}

	d := &Device{
		context: &VulkanContext{
			Device: &VulkanDevice{GraphicsQueueIndex: -1, PresentQueueIndex: -1},
			locks:  NewVulkanLockPool(),
		},
		window:  window,
		options: options,
	}
	if err := d.createInstance(); err != nil {
		return nil, err
	}
	if d.options.Validation {
		d.createDebugger()
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(d.context.Instance, nil)
	if err != nil {
		d.Destroy()
		return nil, errors.Wrap(err, "creating window surface")
	}
	d.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(d.context); err != nil {
		d.Destroy()
		return nil, errors.Wrap(err, "creating device")
	}
	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(d.options.ApplicationName),
		PEngineName:        VulkanSafeString("Umbra Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := d.window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if d.options.Validation {
		ok, err := layerAvailable(validationLayer)
		switch {
		case err != nil:
			return err
		case ok:
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		default:
			core.LogWarn("validation layer %s not present, continuing without it", validationLayer)
			d.options.Validation = false
		}
	}
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, d.context.Allocator, &instance)); err != nil {
		return err
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "loading instance functions")
	}
	core.LogInfo("Vulkan instance created.")
	return nil
}

func layerAvailable(name string) (bool, error) {
	var count uint32
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	available := make([]vk.LayerProperties, count)
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return false, err
	}
	for _, layer := range available {
		layer.Deref()
		if nameFromBytes(layer.LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// createDebugger is best effort; a missing callback only costs log output.
func (d *Device) createDebugger() {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if err := resultError("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(d.context.Instance, &debugCreateInfo, d.context.Allocator, &dbg)); err != nil {
		core.LogError("%s", err)
		return
	}
	d.context.debugMessenger = dbg
}

func (d *Device) Now() gpu.Future {
	return &VulkanFuture{context: d.context}
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	rp, err := RenderpassCreate(d.context, desc)
	if err != nil {
		return nil, err
	}
	return rp, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	img, err := ImageCreate(d.context, desc)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.Image) (gpu.Framebuffer, error) {
	rp, ok := pass.(*VulkanRenderpass)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "framebuffer for a foreign render pass")
	}
	fb, err := FramebufferCreate(d.context, rp, attachments)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	p, err := NewGraphicsPipeline(d.context, desc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) CreateBuffer(usage gpu.BufferUsage, size uint64) (gpu.Buffer, error) {
	b, err := BufferCreate(d.context, usage, size)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32) (gpu.DescriptorPool, error) {
	p, err := DescriptorPoolCreate(d.context, maxSets)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) NewPrimaryRecorder() (gpu.PrimaryRecorder, error) {
	cb, err := NewPrimaryRecorder(d.context)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

func (d *Device) NewSecondaryRecorder(subpass gpu.Subpass) (gpu.Recorder, error) {
	cb, err := NewSecondaryRecorder(d.context, subpass)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

func (d *Device) CreateSwapchain(extent gpu.Extent, old gpu.Swapchain) (gpu.Swapchain, error) {
	var previous *VulkanSwapchain
	if old != nil {
		vs, ok := old.(*VulkanSwapchain)
		if !ok {
			return nil, errors.Wrap(core.ErrUnsupported, "retiring a foreign swapchain")
		}
		previous = vs
	}
	sc, err := SwapchainCreate(d.context, extent, previous)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (d *Device) WaitIdle() error {
	if d.context.Device.LogicalDevice == nil {
		return nil
	}
	return d.context.locks.SafeCall(QueueManagement, func() error {
		return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.context.Device.LogicalDevice))
	})
}

// Destroy tears down in reverse creation order. Everything created from the
// device must be destroyed first.
func (d *Device) Destroy() {
	if err := d.WaitIdle(); err != nil {
		core.LogError("waiting for device idle: %s", err)
	}
	vc := d.context

	core.LogDebug("Destroying Vulkan device...")
	if vc.Device.LogicalDevice != nil {
		DeviceDestroy(vc)
	}

	core.LogDebug("Destroying Vulkan surface...")
	if vc.Surface != vk.NullSurface {
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}

	if vc.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}

	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("vulkan performance: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
