package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/internal/domain/types"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ChartSource lists what the chart page plots.
type ChartSource interface {
	Ranking(ctx context.Context, limit int) ([]types.RankedEntry, error)
	BattleRanking(ctx context.Context) ([]model.BattleStanding, error)
}

// ChartHandler renders the ranking as an HTML bar chart.
type ChartHandler struct {
	src ChartSource
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(src ChartSource) *ChartHandler {
	return &ChartHandler{src: src}
}

// HandleChart handles GET /ranking/chart?limit=N.
func (h *ChartHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind("ranking chart", ErrBadRequest, err))
		return
	}
	entries, err := h.src.Ranking(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	standings, err := h.src.BattleRanking(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(scoreChart(entries), winsChart(standings))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, "render_error", WrapKind("ranking chart", ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func scoreChart(entries []types.RankedEntry) *charts.Bar {
	x := make([]string, len(entries))
	y := make([]opts.BarData, len(entries))
	top := 0
	for i, e := range entries {
		x[i] = fmt.Sprintf("%d. %s", e.Rank, e.Name)
		y[i] = opts.BarData{Name: e.Name, Value: e.Score}
		top = max(top, e.Score)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "520px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Combat Power",
			Subtitle: fmt.Sprintf("%s entries, top %s, %s", humanize.Comma(int64(len(entries))), humanize.Comma(int64(top)), time.Now().Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
	)
	bar.SetXAxis(x).
		AddSeries("score", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func winsChart(standings []model.BattleStanding) *charts.Bar {
	x := make([]string, len(standings))
	y := make([]opts.BarData, len(standings))
	for i, s := range standings {
		x[i] = s.Name
		y[i] = opts.BarData{Name: s.Name, Value: s.Wins}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Battle Wins", Subtitle: humanize.Comma(int64(len(standings))) + " winners"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("wins", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
