package frames

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
)

// BuildClip packs JPEG frames into a motion-JPEG AVI so the contextual
// model receives one playable artifact instead of a bag of stills. All
// frames are assumed to share the first frame's dimensions.
func BuildClip(frames [][]byte, fps int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to build clip from")
	}
	if fps < 1 {
		fps = 1
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frames[0]))
	if err != nil {
		return nil, fmt.Errorf("decode first frame: %w", err)
	}
	width, height := uint32(cfg.Width), uint32(cfg.Height)

	maxFrame := 0
	for _, f := range frames {
		if len(f) > maxFrame {
			maxFrame = len(f)
		}
	}

	var movi bytes.Buffer
	movi.WriteString("movi")
	type indexEntry struct{ offset, size uint32 }
	index := make([]indexEntry, 0, len(frames))
	for _, f := range frames {
		offset := uint32(movi.Len())
		movi.WriteString("00dc")
		writeU32(&movi, uint32(len(f)))
		movi.Write(f)
		if len(f)%2 == 1 {
			movi.WriteByte(0)
		}
		index = append(index, indexEntry{offset: offset, size: uint32(len(f))})
	}

	var hdrl bytes.Buffer
	hdrl.WriteString("hdrl")

	// avih: main header.
	hdrl.WriteString("avih")
	writeU32(&hdrl, 56)
	writeU32(&hdrl, uint32(1_000_000/fps)) // microseconds per frame
	writeU32(&hdrl, uint32(maxFrame*fps))  // max bytes per second
	writeU32(&hdrl, 0)                     // padding granularity
	writeU32(&hdrl, 0x10)                  // has index
	writeU32(&hdrl, uint32(len(frames)))
	writeU32(&hdrl, 0) // initial frames
	writeU32(&hdrl, 1) // streams
	writeU32(&hdrl, uint32(maxFrame))
	writeU32(&hdrl, width)
	writeU32(&hdrl, height)
	for i := 0; i < 4; i++ {
		writeU32(&hdrl, 0)
	}

	// strl: single video stream, strh + strf.
	var strl bytes.Buffer
	strl.WriteString("strl")
	strl.WriteString("strh")
	writeU32(&strl, 56)
	strl.WriteString("vids")
	strl.WriteString("MJPG")
	writeU32(&strl, 0)          // flags
	writeU32(&strl, 0)          // priority + language
	writeU32(&strl, 0)          // initial frames
	writeU32(&strl, 1)          // scale
	writeU32(&strl, uint32(fps))
	writeU32(&strl, 0) // start
	writeU32(&strl, uint32(len(frames)))
	writeU32(&strl, uint32(maxFrame))
	writeU32(&strl, 0xFFFFFFFF) // quality: default
	writeU32(&strl, 0)          // sample size
	writeU16(&strl, 0)          // rcFrame
	writeU16(&strl, 0)
	writeU16(&strl, uint16(width))
	writeU16(&strl, uint16(height))

	strl.WriteString("strf")
	writeU32(&strl, 40)
	writeU32(&strl, 40) // BITMAPINFOHEADER size
	writeU32(&strl, width)
	writeU32(&strl, height)
	writeU16(&strl, 1)  // planes
	writeU16(&strl, 24) // bit count
	strl.WriteString("MJPG")
	writeU32(&strl, width*height*3)
	for i := 0; i < 4; i++ {
		writeU32(&strl, 0)
	}

	hdrl.WriteString("LIST")
	writeU32(&hdrl, uint32(strl.Len()))
	hdrl.Write(strl.Bytes())

	var idx1 bytes.Buffer
	for _, e := range index {
		idx1.WriteString("00dc")
		writeU32(&idx1, 0x10) // keyframe
		writeU32(&idx1, e.offset)
		writeU32(&idx1, e.size)
	}

	var body bytes.Buffer
	body.WriteString("AVI ")
	body.WriteString("LIST")
	writeU32(&body, uint32(hdrl.Len()))
	body.Write(hdrl.Bytes())
	body.WriteString("LIST")
	writeU32(&body, uint32(movi.Len()))
	body.Write(movi.Bytes())
	body.WriteString("idx1")
	writeU32(&body, uint32(idx1.Len()))
	body.Write(idx1.Bytes())

	var out bytes.Buffer
	out.Grow(body.Len() + 8)
	out.WriteString("RIFF")
	writeU32(&out, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
