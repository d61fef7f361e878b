// Package plotter draws learning curves of training runs
package plotter

import (
	"fmt"
	"image/color"

	"github.com/samuelfneumann/armppo/agent/ppo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	rewardColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bestColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	reversionColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// MeanRewards returns a plot of the mean reward and best mean reward of
// each iteration, with the iterations in which the policy was reverted
// marked
func MeanRewards(title string, its []ppo.Iteration) (*plot.Plot, error) {
	if len(its) == 0 {
		return nil, fmt.Errorf("meanrewards: no iterations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Mean reward"

	rewards := make(plotter.XYs, len(its))
	best := make(plotter.XYs, len(its))
	var reverted plotter.XYs
	for i, it := range its {
		rewards[i].X, rewards[i].Y = float64(it.Index), it.MeanReward
		best[i].X, best[i].Y = float64(it.Index), it.BestMeanReward
		if it.Decision == ppo.Reverted {
			reverted = append(reverted, rewards[i])
		}
	}

	rewardLine, err := plotter.NewLine(rewards)
	if err != nil {
		return nil, fmt.Errorf("meanrewards: %w", err)
	}
	rewardLine.Color = rewardColor

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return nil, fmt.Errorf("meanrewards: %w", err)
	}
	bestLine.Color = bestColor
	bestLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), rewardLine, bestLine)
	p.Legend.Add("mean reward", rewardLine)
	p.Legend.Add("best mean reward", bestLine)

	if len(reverted) > 0 {
		markers, err := plotter.NewScatter(reverted)
		if err != nil {
			return nil, fmt.Errorf("meanrewards: %w", err)
		}
		markers.Color = reversionColor
		markers.Shape = draw.CrossGlyph{}
		markers.Radius = vg.Points(4)
		p.Add(markers)
		p.Legend.Add("reverted", markers)
	}
	p.Legend.Top = false // legend along the bottom edge

	return p, nil
}

// SaveMeanRewards draws MeanRewards to filename. The image format is
// chosen from the file extension.
func SaveMeanRewards(filename, title string, its []ppo.Iteration) error {
	p, err := MeanRewards(title, its)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("savemeanrewards: %w", err)
	}
	return nil
}
