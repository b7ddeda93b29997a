/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/space2thread/internal/clip"
)

var (
	clipAudio        string
	clipStart        float64
	clipEnd          float64
	clipLayout       string
	clipTitle        string
	clipCaption      string
	clipLogo         string
	clipLogoPosition string
)

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Render a highlight video from part of a recording",
	Long: `Cut [start, end) seconds out of a recording with ffmpeg and render it
with the Remotion project in tools.remotion_dir.

Layouts: centered_waveform, split_screen, podcast_card`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := newRenderer().Render(context.Background(), clip.Request{
			AudioPath:    clipAudio,
			StartTime:    clipStart,
			EndTime:      clipEnd,
			Layout:       clipLayout,
			Title:        clipTitle,
			CaptionText:  clipCaption,
			LogoPath:     clipLogo,
			LogoPosition: clipLogoPosition,
		})
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clipCmd)

	clipCmd.Flags().StringVarP(&clipAudio, "audio", "a", "", "Source audio file (required)")
	clipCmd.Flags().Float64Var(&clipStart, "start", 0, "Start time in seconds")
	clipCmd.Flags().Float64Var(&clipEnd, "end", 0, "End time in seconds (required)")
	clipCmd.Flags().StringVar(&clipLayout, "layout", clip.LayoutCenteredWaveform, "Video layout")
	clipCmd.Flags().StringVar(&clipTitle, "title", "Space2Thread", "Title shown in the video")
	clipCmd.Flags().StringVar(&clipCaption, "caption", "", "Caption text")
	clipCmd.Flags().StringVar(&clipLogo, "logo", "", "Logo image path")
	clipCmd.Flags().StringVar(&clipLogoPosition, "logo-position", "top-right", "Logo position")

	clipCmd.MarkFlagRequired("audio")
	clipCmd.MarkFlagRequired("end")
}
