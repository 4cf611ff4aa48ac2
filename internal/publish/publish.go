package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"storyline-cli/internal/model"
	"storyline-cli/internal/tree"
)

type WriteOptions struct {
	Overwrite bool
	// HTML also writes <story-id>.html next to the markdown.
	HTML bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteStory exports the story to toDir as <story-id>.md.
func WriteStory(st model.Story, ix *tree.Index, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	md := RenderStoryMarkdown(st, ix)
	mdPath := filepath.Join(toDir, st.ID+".md")
	if err := writeFile(mdPath, []byte(md), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	written := []string{mdPath}

	if opt.HTML {
		body, err := RenderHTML(md)
		if err != nil {
			return WriteResult{}, err
		}
		htmlPath := filepath.Join(toDir, st.ID+".html")
		if err := writeFile(htmlPath, []byte(body), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, htmlPath)
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
