package renderer

import (
	"encoding/binary"
	"strings"
	"testing"
	"unsafe"

	"cogentcore.org/core/math32"
	"github.com/rajveermalviya/go-webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainviewer/internal/shading"
	"terrainviewer/internal/terrain"
)

func TestTerrainShaderPalette(t *testing.T) {
	src, err := TerrainShader(shading.DefaultPalette)
	require.NoError(t, err)

	assert.Contains(t, src, "const TINT_LOW: vec3<f32> = vec3<f32>(0.0, 0.0, 1.0);")
	assert.Contains(t, src, "const TINT_HIGH: vec3<f32> = vec3<f32>(1.0, 0.0, 0.0);")
	assert.Contains(t, src, "const BLEND_WEIGHT: f32 = 0.3;")
	assert.Contains(t, src, "fn vs_main")
	assert.Contains(t, src, "fn fs_main")
	assert.NotContains(t, src, "{{")

	custom := shading.Palette{Low: math32.Vec3(0.25, 0.5, 0.75), High: math32.Vec3(1, 1, 1), BlendWeight: 1}
	src, err = TerrainShader(custom)
	require.NoError(t, err)
	assert.Contains(t, src, "vec3<f32>(0.25, 0.5, 0.75)")
	assert.Contains(t, src, "const BLEND_WEIGHT: f32 = 1.0;")

	_, err = TerrainShader(shading.Palette{BlendWeight: 2})
	assert.ErrorIs(t, err, shading.ErrInvalidPalette)
}

func TestTerrainShaderBindings(t *testing.T) {
	src, err := TerrainShader(shading.DefaultPalette)
	require.NoError(t, err)

	for _, decl := range []string{
		"@group(0) @binding(0) var t_base: texture_2d<f32>;",
		"@group(0) @binding(1) var s_base: sampler;",
		"@group(0) @binding(2) var t_elevation: texture_2d<f32>;",
		"@group(0) @binding(3) var s_elevation: sampler;",
		"@group(0) @binding(4) var<uniform> dimensions: Dimensions;",
		"@group(1) @binding(0) var<uniform> camera: CameraUniform;",
	} {
		assert.Contains(t, src, decl)
	}
	// elevation is never filtered by the sampler itself
	assert.Equal(t, 4, strings.Count(src, "textureSampleLevel(t_elevation"))
}

func TestTerrainShaderCompilation(t *testing.T) {
	src, err := TerrainShader(shading.DefaultPalette)
	require.NoError(t, err)

	spirv, err := CompileSPIRV(src)
	require.NoError(t, err)
	require.Greater(t, len(spirv), 20)
	assert.Equal(t, uint32(spirvMagic), binary.LittleEndian.Uint32(spirv[:4]))

	// palettes outside the defaults still compile
	p := shading.Palette{Low: math32.Vec3(1, 1, 1), High: math32.Vec3(0, 0, 0), BlendWeight: 1}
	src, err = TerrainShader(p)
	require.NoError(t, err)
	_, err = CompileSPIRV(src)
	require.NoError(t, err)
}

func TestWGSLFloat(t *testing.T) {
	assert.Equal(t, "0.0", wgslFloat(0))
	assert.Equal(t, "1.0", wgslFloat(1))
	assert.Equal(t, "0.3", wgslFloat(0.3))
	assert.Equal(t, "0.125", wgslFloat(0.125))
}

func TestTextureLayoutEntries(t *testing.T) {
	entries := textureLayoutEntries()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStage_Fragment, e.Visibility)
	}
	assert.Equal(t, wgpu.TextureSampleType_Float, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingType_Filtering, entries[1].Sampler.Type)
	assert.Equal(t, wgpu.TextureSampleType_UnfilterableFloat, entries[2].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingType_NonFiltering, entries[3].Sampler.Type)
	assert.Equal(t, wgpu.BufferBindingType_Uniform, entries[4].Buffer.Type)

	cam := cameraLayoutEntries()
	require.Len(t, cam, 1)
	assert.Equal(t, wgpu.ShaderStage_Vertex, cam[0].Visibility)
	assert.Equal(t, uintptr(64), unsafe.Sizeof(shading.Camera{}))
	assert.Equal(t, uintptr(8), unsafe.Sizeof(shading.Dimensions{}))
}

func TestVertexLayout(t *testing.T) {
	l := vertexBufferLayout()
	assert.Equal(t, uint64(20), l.ArrayStride)
	require.Len(t, l.Attributes, 2)
	assert.Equal(t, wgpu.VertexFormat_Float32x3, l.Attributes[0].Format)
	assert.Equal(t, uint64(0), l.Attributes[0].Offset)
	assert.Equal(t, wgpu.VertexFormat_Float32x2, l.Attributes[1].Format)
	assert.Equal(t, uint64(12), l.Attributes[1].Offset)

	p := primitiveState()
	assert.Equal(t, wgpu.PrimitiveTopology_TriangleStrip, p.Topology)
	assert.Equal(t, wgpu.IndexFormat_Uint32, p.StripIndexFormat)
	assert.Equal(t, uint32(0xFFFFFFFF), uint32(terrain.RestartIndex))
}

func TestSamplerDescriptor(t *testing.T) {
	d := samplerDescriptor("elevation", shading.PointClampSampler)
	assert.Equal(t, wgpu.FilterMode_Nearest, d.MagFilter)
	assert.Equal(t, wgpu.FilterMode_Nearest, d.MinFilter)
	assert.Equal(t, wgpu.AddressMode_ClampToEdge, d.AddressModeU)

	d = samplerDescriptor("base", shading.Sampler{AddressModeU: shading.Repeat, AddressModeV: shading.MirrorRepeat, Filter: shading.Linear})
	assert.Equal(t, wgpu.FilterMode_Linear, d.MagFilter)
	assert.Equal(t, wgpu.AddressMode_Repeat, d.AddressModeU)
	assert.Equal(t, wgpu.AddressMode_MirrorRepeat, d.AddressModeV)
}
