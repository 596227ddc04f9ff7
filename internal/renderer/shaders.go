package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"cogentcore.org/core/math32"
	"github.com/gogpu/naga"

	"terrainviewer/internal/shading"
)

//go:embed shaders/terrain.wgsl
var terrainShaderSource string

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ErrInvalidSPIRV is returned when the shader compiler output is not SPIR-V.
var ErrInvalidSPIRV = errors.New("invalid SPIR-V output")

var terrainTemplate = template.Must(template.New("terrain.wgsl").Funcs(template.FuncMap{
	"float": wgslFloat,
	"vec3": func(v math32.Vector3) string {
		return fmt.Sprintf("vec3<f32>(%s, %s, %s)", wgslFloat(v.X), wgslFloat(v.Y), wgslFloat(v.Z))
	},
}).Parse(terrainShaderSource))

// wgslFloat formats v as an abstract float literal; WGSL needs the decimal
// point to keep "1" from being an integer.
func wgslFloat(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// TerrainShader returns the terrain WGSL with the palette baked in.
func TerrainShader(p shading.Palette) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := terrainTemplate.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render terrain shader: %w", err)
	}
	return b.String(), nil
}

// CompileSPIRV compiles WGSL to SPIR-V with naga and checks the header.
func CompileSPIRV(src string) ([]byte, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("naga: %w", err)
	}
	if len(spirv) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSPIRV, len(spirv))
	}
	magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
	if magic != spirvMagic {
		return nil, fmt.Errorf("%w: magic 0x%08X", ErrInvalidSPIRV, magic)
	}
	return spirv, nil
}
