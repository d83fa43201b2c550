package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/ytsched/internal/models"
)

var _ list.Item = videoItem{}

// videoItem wraps [models.ScheduledVideo] to implement [list.Item].
type videoItem struct {
	video models.ScheduledVideo
	due   bool
}

func (i videoItem) FilterValue() string { return i.video.Title }
func (i videoItem) Title() string {
	if i.due {
		return styles.due.Render("● ") + i.video.Title
	}
	return i.video.Title
}
func (i videoItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.video.ScheduledDate, i.video.Pathname)
	if i.due {
		desc = "today • " + desc
	}
	return desc
}
