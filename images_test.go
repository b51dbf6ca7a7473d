package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImagesSetNamedSlots(t *testing.T) {
	t.Parallel()

	im := NewImages()
	front := &Image{Name: "front_cover", Data: []byte{1}}
	back := &Image{Name: "back_cover", Data: []byte{2}}
	media := &Image{Name: "media", Data: []byte{3}}

	im.Set(front)
	im.Set(back)
	im.Set(media)

	assert.Same(t, front, im.FrontCover)
	assert.Same(t, back, im.BackCover)
	assert.Same(t, media, im.Media)
	assert.Empty(t, im.Other)
}

func TestImagesSetSecondNamedSlotOverflowsToOther(t *testing.T) {
	t.Parallel()

	im := NewImages()
	im.Set(&Image{Name: "front_cover", Data: []byte{1}})
	im.Set(&Image{Name: "front_cover", Data: []byte{2}})

	assert.NotNil(t, im.FrontCover)
	assert.Equal(t, []byte{1}, im.FrontCover.Data)
	assert.Len(t, im.Other["front_cover"], 1)
	assert.Equal(t, []byte{2}, im.Other["front_cover"][0].Data)
}

func TestImagesAnyPrefersNamedSlotsInOrder(t *testing.T) {
	t.Parallel()

	im := NewImages()
	im.Set(&Image{Name: "unknown", Data: []byte{9}})
	im.Set(&Image{Name: "media", Data: []byte{3}})
	im.Set(&Image{Name: "back_cover", Data: []byte{2}})
	im.Set(&Image{Name: "front_cover", Data: []byte{1}})

	got := im.Any()
	assert.Equal(t, []byte{1}, got.Data)
}

func TestImagesAnyFallsBackToOtherInInsertionOrder(t *testing.T) {
	t.Parallel()

	im := NewImages()
	im.Set(&Image{Name: "band", Data: []byte{1}})
	im.Set(&Image{Name: "artist", Data: []byte{2}})

	got := im.Any()
	assert.Equal(t, []byte{1}, got.Data)
}

func TestImagesAnyOnEmptyReturnsNil(t *testing.T) {
	t.Parallel()

	im := NewImages()
	assert.Nil(t, im.Any())
}

func TestID3PictureTypeSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pictureType byte
		want        string
	}{
		{0, "other"},
		{3, "front_cover"},
		{4, "back_cover"},
		{6, "media"},
		{1, "other_icon"},
		{17, "illustration"},
		{18, "bright_colored_fish"},
		{255, "unknown"},
	}

	for _, tt := range tests {
		got := id3PictureTypeSlot(tt.pictureType)
		assert.Equal(t, tt.want, got, "picture type %d", tt.pictureType)
	}
}

func TestImageMimeForExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/bmp", imageMimeForExtension("bmp"))
	assert.Equal(t, "image/jpeg", imageMimeForExtension("jpg"))
	assert.Equal(t, "image/jpeg", imageMimeForExtension("jpeg"))
	assert.Equal(t, "image/png", imageMimeForExtension("png"))
	assert.Equal(t, "image/gif", imageMimeForExtension("gif"))
}
