package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/gallery"
)

func newImagesCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "images <id>",
		Short: "List or upload property images",
		Long:  "List the images of a property. With --upload, send one or more local files first.",
		Example: `  propchain images 2
  propchain images 2 --upload front.jpg --upload pool.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImages(cmd, args[0], files)
		},
	}

	cmd.Flags().StringArrayVar(&files, "upload", nil, "image file to upload (repeatable)")

	return cmd
}

func runImages(cmd *cobra.Command, arg string, files []string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	c := newAPIClient()

	if len(files) > 0 {
		uploads, err := readUploads(files)
		if err != nil {
			return err
		}
		added, err := c.UploadImages(cmd.Context(), id, uploads)
		if err != nil {
			return err
		}
		if !isJSON() {
			fmt.Fprintf(out(cmd), "Uploaded %d images.\n", len(added))
		}
	}

	images, err := c.ListImages(cmd.Context(), id)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(out(cmd), images)
	}
	printImageList(out(cmd), images)
	return nil
}

func readUploads(paths []string) ([]gallery.Upload, error) {
	uploads := make([]gallery.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		uploads = append(uploads, gallery.Upload{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
			Data:        data,
		})
	}
	return uploads, nil
}
