package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"terrainviewer/internal/logger"
	"terrainviewer/internal/shading"
	"terrainviewer/internal/terrain"
)

const depthFormat = wgpu.TextureFormat_Depth32Float

// ErrUnsupportedTexture is returned when a binding's texture has no GPU
// upload path.
var ErrUnsupportedTexture = errors.New("unsupported texture type")

// Options configures a Renderer
type Options struct {
	Palette    shading.Palette
	ClearColor wgpu.Color
}

// gpuTexture holds a texture and its default view
type gpuTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
}

func (t *gpuTexture) release() {
	if t == nil {
		return
	}
	t.View.Release()
	t.Texture.Release()
}

// sceneResources are the per-scene GPU objects, replaced by SetScene
type sceneResources struct {
	base             *gpuTexture
	elevation        *gpuTexture
	baseSampler      *wgpu.Sampler
	elevationSampler *wgpu.Sampler
	dimensions       *wgpu.Buffer
	bindGroup        *wgpu.BindGroup
	vertexBuffer     *wgpu.Buffer
	indexBuffer      *wgpu.Buffer
	indexCount       uint32
}

func (s *sceneResources) release() {
	if s == nil {
		return
	}
	if s.bindGroup != nil {
		s.bindGroup.Release()
	}
	for _, b := range []*wgpu.Buffer{s.dimensions, s.vertexBuffer, s.indexBuffer} {
		if b != nil {
			b.Release()
		}
	}
	for _, smp := range []*wgpu.Sampler{s.baseSampler, s.elevationSampler} {
		if smp != nil {
			smp.Release()
		}
	}
	s.base.release()
	s.elevation.release()
}

// Renderer draws a terrain mesh tinted by elevation
type Renderer struct {
	device          *wgpu.Device
	queue           *wgpu.Queue
	surface         *wgpu.Surface
	adapter         *wgpu.Adapter
	swapChain       *wgpu.SwapChain
	swapChainFormat wgpu.TextureFormat
	pipeline        *wgpu.RenderPipeline

	textureLayout *wgpu.BindGroupLayout
	cameraLayout  *wgpu.BindGroupLayout
	cameraBuffer  *wgpu.Buffer
	cameraGroup   *wgpu.BindGroup
	depth         *gpuTexture

	scene *sceneResources
	opts  Options

	width  uint32
	height uint32
}

// NewRenderer creates a new WebGPU renderer
func NewRenderer(adapter *wgpu.Adapter, device *wgpu.Device, queue *wgpu.Queue, surface *wgpu.Surface, width, height uint32, opts Options) (*Renderer, error) {
	r := &Renderer{
		adapter: adapter,
		device:  device,
		queue:   queue,
		surface: surface,
		width:   width,
		height:  height,
		opts:    opts,
	}

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) init() error {
	r.swapChainFormat = r.surface.GetPreferredFormat(r.adapter)
	if err := r.configure(); err != nil {
		return err
	}

	src, err := TerrainShader(r.opts.Palette)
	if err != nil {
		return err
	}
	if spirv, err := CompileSPIRV(src); err != nil {
		logger.Logger().Warn("naga could not compile the terrain shader; relying on driver validation", "err", err)
	} else {
		logger.Logger().Debug("terrain shader compiled", "spirv_bytes", len(spirv))
	}

	shader, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "terrain_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return fmt.Errorf("shader creation failed: %w", err)
	}
	defer shader.Release()

	r.textureLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "texture_bind_group_layout",
		Entries: textureLayoutEntries(),
	})
	if err != nil {
		return fmt.Errorf("texture bind group layout creation failed: %w", err)
	}

	r.cameraLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "camera_bind_group_layout",
		Entries: cameraLayoutEntries(),
	})
	if err != nil {
		return fmt.Errorf("camera bind group layout creation failed: %w", err)
	}

	identity := shading.IdentityCamera()
	r.cameraBuffer, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "camera_uniform",
		Contents: wgpu.ToBytes(identity.ViewProj[:]),
		Usage:    wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("camera buffer creation failed: %w", err)
	}

	r.cameraGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "camera_bind_group",
		Layout: r.cameraLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.cameraBuffer, Size: uint64(unsafe.Sizeof(shading.Camera{}))},
		},
	})
	if err != nil {
		return fmt.Errorf("camera bind group creation failed: %w", err)
	}

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "terrain_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.textureLayout, r.cameraLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout creation failed: %w", err)
	}
	defer pipelineLayout.Release()

	r.pipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "terrain_pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    r.swapChainFormat,
				Blend:     &wgpu.BlendState_Replace,
				WriteMask: wgpu.ColorWriteMask_All,
			}},
		},
		Primitive:    primitiveState(),
		DepthStencil: depthStencilState(),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline creation failed: %w", err)
	}

	return nil
}

// configure (re)creates the swap chain and depth buffer for the current size
func (r *Renderer) configure() error {
	if r.swapChain != nil {
		r.swapChain.Release()
		r.swapChain = nil
	}
	var err error
	r.swapChain, err = r.device.CreateSwapChain(r.surface, &wgpu.SwapChainDescriptor{
		Usage:       wgpu.TextureUsage_RenderAttachment,
		Format:      r.swapChainFormat,
		Width:       r.width,
		Height:      r.height,
		PresentMode: wgpu.PresentMode_Fifo,
	})
	if err != nil {
		return fmt.Errorf("swap chain creation failed: %w", err)
	}

	r.depth.release()
	r.depth = nil
	r.depth, err = r.createTexture("depth_texture", r.width, r.height, depthFormat, wgpu.TextureUsage_RenderAttachment)
	if err != nil {
		return fmt.Errorf("depth texture creation failed: %w", err)
	}
	return nil
}

// textureLayoutEntries is group 0: base texture and its filtering sampler,
// the unfilterable elevation texture with a non-filtering sampler, and the
// dimensions uniform.
func textureLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStage_Fragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleType_Float,
				ViewDimension: wgpu.TextureViewDimension_2D,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStage_Fragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_Filtering},
		},
		{
			Binding:    2,
			Visibility: wgpu.ShaderStage_Fragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleType_UnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension_2D,
			},
		},
		{
			Binding:    3,
			Visibility: wgpu.ShaderStage_Fragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_NonFiltering},
		},
		{
			Binding:    4,
			Visibility: wgpu.ShaderStage_Fragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
		},
	}
}

// cameraLayoutEntries is group 1: the view-projection uniform.
func cameraLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: wgpu.ShaderStage_Vertex,
		Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
	}}
}

func vertexBufferLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(unsafe.Sizeof(terrain.Vertex{})),
		StepMode:    wgpu.VertexStepMode_Vertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormat_Float32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormat_Float32x2, Offset: uint64(unsafe.Offsetof(terrain.Vertex{}.TexCoords)), ShaderLocation: 1},
		},
	}
}

// primitiveState draws strips with uint32 indices; RestartIndex separates rows.
func primitiveState() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:         wgpu.PrimitiveTopology_TriangleStrip,
		StripIndexFormat: wgpu.IndexFormat_Uint32,
		FrontFace:        wgpu.FrontFace_CCW,
		CullMode:         wgpu.CullMode_None,
	}
}

func depthStencilState() *wgpu.DepthStencilState {
	keep := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunction_Always,
		FailOp:      wgpu.StencilOperation_Keep,
		DepthFailOp: wgpu.StencilOperation_Keep,
		PassOp:      wgpu.StencilOperation_Keep,
	}
	return &wgpu.DepthStencilState{
		Format:            depthFormat,
		DepthWriteEnabled: true,
		DepthCompare:      wgpu.CompareFunction_Less,
		StencilFront:      keep,
		StencilBack:       keep,
	}
}

func addressMode(m shading.AddressMode) wgpu.AddressMode {
	switch m {
	case shading.Repeat:
		return wgpu.AddressMode_Repeat
	case shading.MirrorRepeat:
		return wgpu.AddressMode_MirrorRepeat
	default:
		return wgpu.AddressMode_ClampToEdge
	}
}

func filterMode(m shading.FilterMode) wgpu.FilterMode {
	if m == shading.Linear {
		return wgpu.FilterMode_Linear
	}
	return wgpu.FilterMode_Nearest
}

// samplerDescriptor mirrors a CPU sampler on the GPU.
func samplerDescriptor(label string, s shading.Sampler) *wgpu.SamplerDescriptor {
	return &wgpu.SamplerDescriptor{
		Label:          label,
		AddressModeU:   addressMode(s.AddressModeU),
		AddressModeV:   addressMode(s.AddressModeV),
		AddressModeW:   wgpu.AddressMode_ClampToEdge,
		MagFilter:      filterMode(s.Filter),
		MinFilter:      filterMode(s.Filter),
		MipmapFilter:   wgpu.MipmapFilterMode_Nearest,
		MaxAnisotrophy: 1,
	}
}

func (r *Renderer) createTexture(label string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*gpuTexture, error) {
	texture, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}

	view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          format,
		Dimension:       wgpu.TextureViewDimension_2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspect_All,
	})
	if err != nil {
		texture.Release()
		return nil, err
	}

	return &gpuTexture{Texture: texture, View: view}, nil
}

// uploadTexture creates a sampled texture and fills it with data laid out
// in rows of bytesPerRow.
func (r *Renderer) uploadTexture(label string, width, height uint32, format wgpu.TextureFormat, data []byte, bytesPerRow uint32) (*gpuTexture, error) {
	tex, err := r.createTexture(label, width, height, format, wgpu.TextureUsage_TextureBinding|wgpu.TextureUsage_CopyDst)
	if err != nil {
		return nil, err
	}
	r.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex.Texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspect_All},
		data,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: height},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	return tex, nil
}

// SetScene uploads the bindings' textures and the mesh, replacing the
// previous scene.
func (r *Renderer) SetScene(b *shading.Bindings, mesh *terrain.Mesh) error {
	if err := b.Validate(); err != nil {
		return err
	}
	base, ok := b.Base.(*shading.ImageTexture)
	if !ok {
		return fmt.Errorf("%w: base %T", ErrUnsupportedTexture, b.Base)
	}
	elev, ok := b.Elevation.(*shading.ScalarTexture)
	if !ok {
		return fmt.Errorf("%w: elevation %T", ErrUnsupportedTexture, b.Elevation)
	}

	s := &sceneResources{}
	if err := r.buildScene(s, base, elev, b, mesh); err != nil {
		s.release()
		return err
	}

	r.scene.release()
	r.scene = s
	logger.Logger().Debug("scene uploaded",
		"base", fmt.Sprintf("%dx%d", base.Image().Rect.Dx(), base.Image().Rect.Dy()),
		"elevation", fmt.Sprintf("%dx%d", elev.Width, elev.Height),
		"vertices", len(mesh.Vertices), "indices", len(mesh.Indices))
	return nil
}

func (r *Renderer) buildScene(s *sceneResources, base *shading.ImageTexture, elev *shading.ScalarTexture, b *shading.Bindings, mesh *terrain.Mesh) error {
	var err error
	img := base.Image()
	s.base, err = r.uploadTexture("base_texture",
		uint32(img.Rect.Dx()), uint32(img.Rect.Dy()),
		wgpu.TextureFormat_RGBA8UnormSrgb, img.Pix, uint32(img.Stride))
	if err != nil {
		return fmt.Errorf("base texture upload failed: %w", err)
	}

	s.elevation, err = r.uploadTexture("elevation_texture",
		uint32(elev.Width), uint32(elev.Height),
		wgpu.TextureFormat_R32Float, wgpu.ToBytes(elev.Pix), uint32(elev.Width*4))
	if err != nil {
		return fmt.Errorf("elevation texture upload failed: %w", err)
	}

	if s.baseSampler, err = r.device.CreateSampler(samplerDescriptor("base_sampler", b.BaseSampler)); err != nil {
		return fmt.Errorf("sampler creation failed: %w", err)
	}
	if s.elevationSampler, err = r.device.CreateSampler(samplerDescriptor("elevation_sampler", b.ElevationSampler)); err != nil {
		return fmt.Errorf("sampler creation failed: %w", err)
	}

	s.dimensions, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "dimensions_uniform",
		Contents: wgpu.ToBytes([]shading.Dimensions{b.Dimensions}),
		Usage:    wgpu.BufferUsage_Uniform,
	})
	if err != nil {
		return fmt.Errorf("dimensions buffer creation failed: %w", err)
	}

	s.bindGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "texture_bind_group",
		Layout: r.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: s.base.View},
			{Binding: 1, Sampler: s.baseSampler},
			{Binding: 2, TextureView: s.elevation.View},
			{Binding: 3, Sampler: s.elevationSampler},
			{Binding: 4, Buffer: s.dimensions, Size: uint64(unsafe.Sizeof(shading.Dimensions{}))},
		},
	})
	if err != nil {
		return fmt.Errorf("texture bind group creation failed: %w", err)
	}

	s.vertexBuffer, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "terrain_vertices",
		Contents: wgpu.ToBytes(mesh.Vertices),
		Usage:    wgpu.BufferUsage_Vertex,
	})
	if err != nil {
		return fmt.Errorf("vertex buffer creation failed: %w", err)
	}
	s.indexBuffer, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "terrain_indices",
		Contents: wgpu.ToBytes(mesh.Indices),
		Usage:    wgpu.BufferUsage_Index,
	})
	if err != nil {
		return fmt.Errorf("index buffer creation failed: %w", err)
	}
	s.indexCount = uint32(len(mesh.Indices))
	return nil
}

// Render draws the scene from cam. Without a scene it only clears.
func (r *Renderer) Render(cam shading.Camera) error {
	r.queue.WriteBuffer(r.cameraBuffer, 0, wgpu.ToBytes(cam.ViewProj[:]))

	view, err := r.swapChain.GetCurrentTextureView()
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{})
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOp_Clear,
			StoreOp:    wgpu.StoreOp_Store,
			ClearValue: r.opts.ClearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depth.View,
			DepthLoadOp:     wgpu.LoadOp_Clear,
			DepthStoreOp:    wgpu.StoreOp_Store,
			DepthClearValue: 1,
		},
	})

	if s := r.scene; s != nil {
		pass.SetPipeline(r.pipeline)
		pass.SetBindGroup(0, s.bindGroup, nil)
		pass.SetBindGroup(1, r.cameraGroup, nil)
		pass.SetVertexBuffer(0, s.vertexBuffer, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(s.indexBuffer, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(s.indexCount, 1, 0, 0, 0)
	}

	pass.End()

	cmdBuffer, err := encoder.Finish(&wgpu.CommandBufferDescriptor{})
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	r.queue.Submit(cmdBuffer)
	r.swapChain.Present()

	return nil
}

// Resize handles window resize
func (r *Renderer) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	r.width = width
	r.height = height

	if err := r.configure(); err != nil {
		logger.Logger().Warn("failed to reconfigure surface", "width", width, "height", height, "err", err)
	}
}

// Release frees all GPU resources
func (r *Renderer) Release() {
	r.scene.release()
	r.scene = nil
	r.depth.release()
	r.depth = nil

	if r.cameraGroup != nil {
		r.cameraGroup.Release()
	}
	if r.cameraBuffer != nil {
		r.cameraBuffer.Release()
	}
	if r.cameraLayout != nil {
		r.cameraLayout.Release()
	}
	if r.textureLayout != nil {
		r.textureLayout.Release()
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.swapChain != nil {
		r.swapChain.Release()
	}
}
