package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/spf13/cobra"

	"facelens/processing/frame"
	processing "facelens/processing/detector"
)

var annotatedOut string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyse a single JPEG or PNG image and print what was found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&annotatedOut, "out", "o", "", "write the annotated image as PNG to this path")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, path string, out io.Writer) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}

	analyzerCfg := cfg.GetAnalyzer()
	analyzer, err := processing.NewAnalyzer(analyzerCfg)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	callCtx, cancel := context.WithTimeout(ctx, analyzerCfg.Timeout())
	defer cancel()

	res, err := processing.AnalyzeFrame(callCtx, analyzer, img, cfg.JPEGQuality, processing.NewEmotionTally())
	if err != nil {
		return err
	}

	if !res.Found {
		fmt.Fprintln(out, "no face detected")
		return nil
	}

	a := res.Annotation
	fmt.Fprintf(out, "faces:      %d\n", res.FaceCount)
	fmt.Fprintf(out, "rectangle:  left=%d top=%d width=%d height=%d\n", a.Rect.Left, a.Rect.Top, a.Rect.Width, a.Rect.Height)
	fmt.Fprintf(out, "age:        %d\n", a.Age)
	fmt.Fprintf(out, "gender:     %s\n", a.Gender)
	fmt.Fprintf(out, "emotion:    %s (%.3f)\n", a.Emotion, a.Confidence)

	if annotatedOut == "" {
		return nil
	}
	if err := writePNG(annotatedOut, res.Annotated); err != nil {
		return err
	}
	fmt.Fprintf(out, "annotated:  %s\n", annotatedOut)
	return nil
}

func loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return frame.Clone(img), nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
