package app

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"cogentcore.org/core/math32"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"terrainviewer/internal/camera"
	"terrainviewer/internal/config"
	"terrainviewer/internal/framestats"
	"terrainviewer/internal/logger"
	"terrainviewer/internal/renderer"
	"terrainviewer/internal/scene"
	"terrainviewer/internal/terrain"
)

// keyDirections maps held keys to camera movement
var keyDirections = map[glfw.Key]camera.Direction{
	glfw.KeyW:         camera.Forward,
	glfw.KeyUp:        camera.Forward,
	glfw.KeyS:         camera.Backward,
	glfw.KeyDown:      camera.Backward,
	glfw.KeyA:         camera.Left,
	glfw.KeyLeft:      camera.Left,
	glfw.KeyD:         camera.Right,
	glfw.KeyRight:     camera.Right,
	glfw.KeySpace:     camera.Up,
	glfw.KeyLeftShift: camera.Down,
}

type App struct {
	window   *glfw.Window
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	renderer   *renderer.Renderer
	camera     *camera.Camera
	projection *camera.Projection
	controller *camera.Controller
	mesh       *terrain.Mesh
	cfg        *config.Config

	dragging     bool
	lastX, lastY float64

	width, height int
}

// New opens a window and uploads sc for drawing.
func New(cfg *config.Config, sc *scene.Scene) (*App, error) {
	runtime.LockOSThread()

	mesh, err := sc.Mesh(cfg.Rendering.HeightScale)
	if err != nil {
		return nil, err
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("GLFW init failed: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.CocoaRetinaFramebuffer, glfw.True)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window creation failed: %w", err)
	}

	app := &App{
		window: window,
		mesh:   mesh,
		cfg:    cfg,
	}
	app.width, app.height = window.GetFramebufferSize()

	if err := app.initWebGPU(); err != nil {
		app.Cleanup()
		return nil, err
	}

	cc := cfg.Rendering.ClearColor
	app.renderer, err = renderer.NewRenderer(app.adapter, app.device, app.queue, app.surface,
		uint32(app.width), uint32(app.height), renderer.Options{
			Palette:    cfg.Rendering.Palette(),
			ClearColor: wgpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]},
		})
	if err != nil {
		app.Cleanup()
		return nil, fmt.Errorf("renderer creation failed: %w", err)
	}
	if err := app.renderer.SetScene(sc.Bindings(), mesh); err != nil {
		app.Cleanup()
		return nil, fmt.Errorf("scene upload failed: %w", err)
	}

	app.camera = overviewCamera(mesh)
	app.projection = camera.NewProjection(app.width, app.height,
		math32.DegToRad(float32(cfg.Rendering.FovYDegrees)),
		float32(cfg.Rendering.ZNear), float32(cfg.Rendering.ZFar))
	app.controller = camera.NewController(float32(cfg.Rendering.CameraSpeed), float32(cfg.Rendering.MouseSensitivity))

	app.setupCallbacks()

	return app, nil
}

// overviewCamera places the camera above and in front of the mesh, looking
// at its center.
func overviewCamera(mesh *terrain.Mesh) *camera.Camera {
	center := mesh.Center()
	extent := float32(max(mesh.Width, mesh.Height))
	cam := camera.NewCamera(center.Add(math32.Vec3(0, extent*0.5, extent*0.8)), -90, 0)
	cam.LookAt(center)
	return cam
}

func (app *App) initWebGPU() error {
	app.instance = wgpu.CreateInstance(&wgpu.InstanceDescriptor{
		Backends: instanceBackends,
	})
	if app.instance == nil {
		return errors.New("failed to create WebGPU instance")
	}

	var err error
	app.surface, err = createSurface(app.instance, app.window)
	if err != nil {
		return fmt.Errorf("surface creation failed: %w", err)
	}

	// Request adapter - try with surface first, then without
	app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: app.surface,
		PowerPreference:   wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		logger.Logger().Warn("no adapter for surface, retrying without surface constraint", "err", err)
		app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreference_HighPerformance,
		})
		if err != nil {
			return fmt.Errorf("adapter request failed: %w", err)
		}
	}

	props := app.adapter.GetProperties()
	logger.Logger().Info("adapter selected", "name", props.Name, "driver", props.DriverDescription)

	app.device, err = app.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "TerrainDevice",
	})
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}

	app.queue = app.device.GetQueue()
	return nil
}

func (app *App) setupCallbacks() {
	app.window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		app.width = width
		app.height = height
		app.projection.Resize(width, height)
		app.renderer.Resize(uint32(width), uint32(height))
	})

	app.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		app.dragging = action == glfw.Press
		if app.dragging {
			app.lastX, app.lastY = w.GetCursorPos()
		}
	})

	app.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if app.dragging {
			app.controller.ProcessMouse(x-app.lastX, y-app.lastY)
		}
		app.lastX, app.lastY = x, y
	})

	app.window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		app.controller.ProcessScroll(yoff)
	})

	app.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
			return
		}
		if d, ok := keyDirections[key]; ok && action != glfw.Repeat {
			app.controller.ProcessKeyboard(d, action == glfw.Press)
		}
	})
}

// Run drives the frame loop until the window closes.
func (app *App) Run() error {
	last := time.Now()
	stats := framestats.New(last, time.Second)

	for !app.window.ShouldClose() {
		glfw.PollEvents()

		now := time.Now()
		moved := app.controller.Moving()
		app.controller.UpdateCamera(app.camera, now.Sub(last))
		last = now

		vp := camera.ViewProj(app.camera, app.projection)
		if moved && app.cfg.Features.LogVisibility {
			logger.Logger().Debug("visible terrain", "vertices", app.mesh.VisibleVertices(vp), "of", len(app.mesh.Vertices))
		}

		if err := app.renderer.Render(vp); err != nil {
			logger.Logger().Warn("render failed", "err", err)
		}

		if stats.Frame(now) {
			app.reportFrameStats(stats)
		}
	}

	return nil
}

// reportFrameStats logs timing, camera and projection state and, with
// ShowFPS, puts the frame rates in the title.
func (app *App) reportFrameStats(stats *framestats.Stats) {
	cam, proj := app.camera, app.projection
	logger.Logger().Debug("frame stats",
		"fps", stats.FPS,
		"avgFps", stats.AvgFPS,
		"delta", stats.Delta,
		"frames", stats.Total(),
		"position", cam.Position,
		"yaw", math32.RadToDeg(cam.Yaw),
		"pitch", math32.RadToDeg(cam.Pitch),
		"aspect", proj.Aspect,
		"fovY", math32.RadToDeg(proj.FovY),
		"zNear", proj.ZNear,
		"zFar", proj.ZFar,
	)
	if app.cfg.Features.ShowFPS {
		app.window.SetTitle(fmt.Sprintf("%s | FPS: %.0f (avg %.0f)", app.cfg.Window.Title, stats.FPS, stats.AvgFPS))
	}
}

func (app *App) Cleanup() {
	if app.renderer != nil {
		app.renderer.Release()
	}
	if app.queue != nil {
		app.queue.Release()
	}
	if app.device != nil {
		app.device.Release()
	}
	if app.adapter != nil {
		app.adapter.Release()
	}
	if app.surface != nil {
		app.surface.Release()
	}
	if app.instance != nil {
		app.instance.Release()
	}
	if app.window != nil {
		app.window.Destroy()
	}
	glfw.Terminate()
}
