package cmd

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"go.uber.org/multierr"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/logger"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
	"github.com/df07/go-mitsuba-pathtracer/pkg/texture"
)

// ShowSceneInfo loads a scene and displays its statistics.
func ShowSceneInfo(ctx *cli.Context) error {
	path, err := scenePath(ctx)
	if err != nil {
		return err
	}
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	sc, err := scene.Load(path, cfg.SceneOptions(log))
	if err != nil {
		return err
	}
	return displaySceneStats(ctx.App.Writer, sc)
}

func displaySceneStats(w io.Writer, sc *scene.Scene) error {
	var buf bytes.Buffer

	cam := sc.Camera.Config()
	summary := newTable(&buf, "Property", "Value")
	summary.AppendBulk([][]string{
		{"Scene", sc.Name},
		{"Resolution", fmt.Sprintf("%dx%d", cam.Width, cam.Height)},
		{"Vertical FOV", fmt.Sprintf("%.2f", cam.VFov)},
		{"Camera", fmt.Sprintf("%s looking %s", formatVec(sc.Camera.Position()), formatVec(sc.Camera.Forward()))},
		{"Instances", fmt.Sprintf("%d", len(sc.Instances))},
		{"Emitters", fmt.Sprintf("%d", sc.EmitterCount())},
		{"Triangles", fmt.Sprintf("%d", sc.TriangleCount())},
		{"Textures", fmt.Sprintf("%d", sc.Textures.Len())},
		{"Environment", describeEnvironment(sc.Environment)},
	})
	if sc.SamplesPerPixel > 0 {
		summary.Append([]string{"Sample count hint", fmt.Sprintf("%d", sc.SamplesPerPixel)})
	}
	if sc.MaxDepth > 0 {
		summary.Append([]string{"Max depth hint", fmt.Sprintf("%d", sc.MaxDepth)})
	}
	summary.Render()

	counts := sc.MaterialCounts()
	types := make([]material.Type, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	materials := newTable(&buf, "Material", "Count")
	for _, t := range types {
		materials.Append([]string{t.String(), fmt.Sprintf("%d", counts[t])})
	}
	materials.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", len(sc.Materials))})
	materials.Render()

	if problems := multierr.Errors(sc.Report); len(problems) > 0 {
		report := newTable(&buf, "#", "Load problem")
		for i, p := range problems {
			report.Append([]string{fmt.Sprintf("%d", i+1), p.Error()})
		}
		report.Render()
	}

	_, err := fmt.Fprintf(w, "scene information:\n%s", buf.String())
	return err
}

func describeEnvironment(env *texture.Environment) string {
	switch {
	case env == nil:
		return "none"
	case env.Map != nil:
		return fmt.Sprintf("map %dx%d, intensity %g", env.Map.Width, env.Map.Height, env.Intensity)
	case env.SkyTop == env.SkyBottom:
		return "constant " + formatVec(env.SkyTop.Multiply(env.Intensity))
	default:
		return "gradient sky"
	}
}

func formatVec(v core.Vec3) string {
	return fmt.Sprintf("(%.3g, %.3g, %.3g)", v.X, v.Y, v.Z)
}

// ListScenes displays the built-in scenes and the scene files of the scenes directory.
func ListScenes(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	response, err := scene.ListAllScenes(cfg.Server.ScenesDir, log)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := newTable(&buf, "Group", "ID", "Name", "Source")
	for _, group := range response.Groups {
		for _, s := range group.Scenes {
			table.Append([]string{group.Name, s.ID, s.DisplayName, s.FilePath})
		}
	}
	table.Render()

	_, err = fmt.Fprint(ctx.App.Writer, buf.String())
	return err
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}
