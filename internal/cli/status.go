// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Gateway status commands: models, quota and version.
package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/jeranaias/surveyor/internal/quota"
)

// =============================================================================
// MODELS
// =============================================================================

func runModels(app *App, args Args, out io.Writer) error {
	ctx, cancel := app.requestContext()
	defer cancel()

	models, err := app.Engine.RefreshModels(ctx)
	selected := app.Store.Snapshot().SelectedModel

	if args.JSON {
		if err != nil {
			return err
		}
		data := make([]ModelData, 0, len(models))
		for _, m := range models {
			data = append(data, ModelData{Name: m.Name, Size: m.Size, Digest: m.Digest, Selected: m.Name == selected})
		}
		return NewJSONResponse("models", data).Write(out)
	}

	if len(models) == 0 {
		if err != nil {
			return reportedError{err}
		}
		fmt.Fprintln(out, DimStyle.Render("The gateway reported no models."))
		return nil
	}
	if err != nil {
		fmt.Fprintln(out, DimStyle.Render("Showing cached model list."))
	}

	t := &table{headers: []string{"NAME", "SIZE"}, max: []int{48, 0}}
	for _, m := range models {
		t.add(m.Name, m.FormatSize())
	}
	t.write(out, func(row int) bool { return models[row].Name == selected })
	if err != nil {
		return reportedError{err}
	}
	return nil
}

// =============================================================================
// QUOTA
// =============================================================================

func runQuota(app *App, args Args, out io.Writer) error {
	ctx, cancel := app.requestContext()
	defer cancel()

	err := app.Engine.RefreshQuota(ctx)
	snap := app.Relay.Last()

	if args.JSON {
		if err != nil && snap.Status != quota.StatusLoginRequired {
			return err
		}
		data := QuotaData{
			Status:    quotaStatusName(snap.Status),
			Remaining: snap.Remaining,
			Limit:     snap.Limit,
			Display:   snap.String(),
		}
		if !snap.ResetAt.IsZero() {
			reset := snap.ResetAt
			data.ResetAt = &reset
		}
		return NewJSONResponse("quota", data).Write(out)
	}

	fmt.Fprintln(out, RenderLabel("Quota", snap.String()))
	if snap.Status == quota.StatusKnown && !snap.ResetAt.IsZero() {
		fmt.Fprintln(out, RenderLabel("Resets", formatAge(snap.ResetAt)))
	}
	return err
}

func quotaStatusName(s quota.Status) string {
	switch s {
	case quota.StatusKnown:
		return "known"
	case quota.StatusLoginRequired:
		return "login_required"
	case quota.StatusFetchFailed:
		return "unavailable"
	default:
		return "unknown"
	}
}

// =============================================================================
// VERSION
// =============================================================================

func runVersion(args Args, out io.Writer) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", data).Write(out)
	}
	if args.Quiet {
		fmt.Fprintln(out, Version)
		return nil
	}
	fmt.Fprintln(out, TitleStyle.Render("surveyor "+data.Version))
	fmt.Fprintln(out, RenderLabel("Commit", data.GitCommit))
	fmt.Fprintln(out, RenderLabel("Built", data.BuildDate))
	fmt.Fprintln(out, RenderLabel("Go", data.GoVersion))
	fmt.Fprintln(out, RenderLabel("Platform", data.Platform))
	return nil
}
