// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/flv"
	"github.com/q191201771/naza/pkg/assert"
)

func TestPackFlvHeader(t *testing.T) {
	assert.Equal(t, "464c5601050000000900000000", hex.EncodeToString(flv.PackFlvHeader(true, true)))
	assert.Equal(t, "464c5601040000000900000000", hex.EncodeToString(flv.PackFlvHeader(true, false)))
	assert.Equal(t, "464c5601010000000900000000", hex.EncodeToString(flv.PackFlvHeader(false, true)))

	hasAudio, hasVideo, err := flv.ParseFlvHeader(flv.PackFlvHeader(false, true))
	assert.Equal(t, nil, err)
	assert.Equal(t, false, hasAudio)
	assert.Equal(t, true, hasVideo)

	_, _, err = flv.ParseFlvHeader([]byte("FLX\x01\x05\x00\x00\x00\x09"))
	assert.IsNotNil(t, err)
	_, _, err = flv.ParseFlvHeader([]byte("FLV"))
	assert.IsNotNil(t, err)
}

func TestPackTag(t *testing.T) {
	b := flv.PackTag(base.FlvTagTypeMetadata, 0x12345678, []byte{0xaa, 0xbb})
	assert.Equal(t, "12"+"000002"+"345678"+"12"+"000000"+"aabb"+"0000000d", hex.EncodeToString(b))

	tag, err := flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, nil, err)
	assert.Equal(t, base.FlvTagTypeMetadata, tag.Header.Type)
	assert.Equal(t, uint32(2), tag.Header.DataSize)
	assert.Equal(t, uint32(0x12345678), tag.Header.Timestamp)
	assert.Equal(t, []byte{0xaa, 0xbb}, tag.Payload())
	assert.Equal(t, uint32(13), tag.PrevTagSize())
	assert.Equal(t, true, tag.IsMetadata())

	tag.ModTagTimestamp(1)
	assert.Equal(t, uint32(1), flv.ParseTagHeader(tag.Raw).Timestamp)

	_, err = flv.ReadTag(bytes.NewReader(b[:10]))
	assert.IsNotNil(t, err)
	_, err = flv.ReadTag(bytes.NewReader(b[:15]))
	assert.Equal(t, true, errors.Is(err, io.ErrUnexpectedEOF))
	_, err = flv.ReadTag(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	// DataSize只有24位，超过时panic而不是截断
	var recovered interface{}
	func() {
		defer func() {
			recovered = recover()
		}()
		flv.PackTagHeaderTo(make([]byte, flv.TagHeaderSize), base.FlvTagTypeVideo, flv.MaxTagDataSize+1, 0)
	}()
	rerr, ok := recovered.(error)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, errors.Is(rerr, base.ErrFlvTagTooLarge))
}

func TestPackAvcTag(t *testing.T) {
	b, err := flv.PackAvcNaluTag([][]byte{{0x65, 0x88}, {0x06}}, true, 40, 80)
	assert.Equal(t, nil, err)
	assert.Equal(t, "09"+"000010"+"000028"+"00"+"000000"+
		"17"+"01"+"000050"+"0000000265880000000106"+"0000001b", hex.EncodeToString(b))
	tag, err := flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, nil, err)
	assert.Equal(t, true, tag.IsAvc())
	assert.Equal(t, true, tag.IsAvcKeyNalu())
	assert.Equal(t, false, tag.IsAvcKeySeqHeader())
	assert.Equal(t, int32(80), tag.CompositionTime())

	b, err = flv.PackAvcNaluTag([][]byte{{0x41}}, false, 0, -40)
	assert.Equal(t, nil, err)
	tag, _ = flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, true, tag.IsAvcInterNalu())
	assert.Equal(t, int32(-40), tag.CompositionTime())
	assert.Equal(t, []byte{0xff, 0xff, 0xd8}, tag.Payload()[2:5])

	// 每个nalu前加上4字节长度后超过24位的DataSize
	big := make([]byte, flv.MaxTagDataSize/2)
	_, err = flv.PackAvcNaluTag([][]byte{big, big}, true, 0, 0)
	assert.Equal(t, true, errors.Is(err, base.ErrFlvTagTooLarge))
	b, err = flv.PackAvcNaluTag([][]byte{big[:len(big)-12], big}, true, 0, 0)
	assert.Equal(t, nil, err)
	assert.Equal(t, flv.TagHeaderSize+flv.MaxTagDataSize+flv.PrevTagSizeFieldSize, len(b))

	b = flv.PackAvcSeqHeaderTag([]byte{0x01, 0x42}, 0, 0)
	tag, _ = flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, true, tag.IsAvcKeySeqHeader())
	assert.Equal(t, []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x42}, tag.Payload())

	b = flv.PackAvcEosTag(1000)
	assert.Equal(t, "09"+"000005"+"0003e8"+"00"+"000000"+"1702000000"+"00000010", hex.EncodeToString(b))
	tag, _ = flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, true, tag.IsAvcEos())
}

func TestPackAacTag(t *testing.T) {
	b := flv.PackAacSeqHeaderTag([]byte{0x12, 0x10}, 0)
	assert.Equal(t, "08"+"000004"+"000000"+"00"+"000000"+"af001210"+"0000000f", hex.EncodeToString(b))
	tag, _ := flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, true, tag.IsAacSeqHeader())

	adts := []byte{0xff, 0xf1, 0x50, 0x80, 0x01, 0x5f, 0xfc, 0x21, 0x22, 0x23}
	b, err := flv.PackAacRawTagWithAdts(adts, 23)
	assert.Equal(t, nil, err)
	tag, _ = flv.ReadTag(bytes.NewReader(b))
	assert.Equal(t, true, tag.IsAacRaw())
	assert.Equal(t, []byte{0xaf, 0x01, 0x21, 0x22, 0x23}, tag.Payload())

	_, err = flv.PackAacRawTagWithAdts([]byte{0x21, 0x22}, 0)
	assert.IsNotNil(t, err)
}

func TestMetaData(t *testing.T) {
	md := flv.NewMetaData(true, true)
	md.Encoder = "lalflv"
	placeholder := md.Pack()

	md.Duration = 12.5
	md.FileSize = 1024 * 1024
	md.Width = 1280
	md.Height = 720
	md.FrameRate = 25
	md.AudioSampleRate = 44100
	final := md.Pack()
	assert.Equal(t, len(placeholder), len(final))

	parsed, err := flv.ParseMetadata(final)
	assert.Equal(t, nil, err)
	assert.Equal(t, md, parsed)

	raw, err := flv.ParseMetadataRaw(final)
	assert.Equal(t, nil, err)
	assert.Equal(t, 15, len(raw))

	// 只有视频时不携带音频字段
	vmd := flv.NewMetaData(false, true)
	raw, err = flv.ParseMetadataRaw(vmd.Pack())
	assert.Equal(t, nil, err)
	_, ok := raw["audiosamplerate"]
	assert.Equal(t, false, ok)
	assert.Equal(t, float64(7), raw["videocodecid"])

	_, err = flv.ParseMetadata([]byte{0x02, 0x00, 0x01, 'a', 0x08, 0, 0, 0, 0, 0, 0, 9})
	assert.IsNotNil(t, err)
}

func TestBufferSink(t *testing.T) {
	s := flv.NewBufferSink()
	assert.Equal(t, nil, s.WriteFlvHeader([]byte{1, 2, 3}))
	assert.Equal(t, nil, s.WriteTag([]byte{4, 5}, base.FlvTagTypeAudio, 0))
	assert.Equal(t, nil, s.UpdateAt(1, []byte{9, 9}))
	assert.Equal(t, []byte{1, 9, 9, 4, 5}, s.Bytes())
	assert.Equal(t, nil, s.UpdateAt(3, []byte{0, 0}))
	assert.Equal(t, []byte{1, 9, 9, 0, 0}, s.Bytes())
	assert.IsNotNil(t, s.UpdateAt(4, []byte{0, 0}))
	assert.IsNotNil(t, s.UpdateAt(-1, []byte{0}))
	assert.Equal(t, []byte{1, 9, 9, 0, 0}, s.Bytes())
	assert.Equal(t, nil, s.OnMuxingEnd())
	assert.Equal(t, true, s.Ended())
}

func TestWriterSink(t *testing.T) {
	var out bytes.Buffer
	s := flv.NewWriterSink(&out, nil)
	assert.Equal(t, nil, s.WriteFlvHeader([]byte{1}))
	assert.Equal(t, nil, s.WriteTag([]byte{2}, base.FlvTagTypeVideo, 0))
	assert.Equal(t, true, errors.Is(s.UpdateAt(0, []byte{3}), base.ErrFlvSinkNotSeek))
	assert.Equal(t, nil, s.OnMuxingEnd())
	assert.Equal(t, []byte{1, 2}, out.Bytes())

	var gotOffset int64
	s = flv.NewWriterSink(&out, func(offset int64, b []byte) error {
		gotOffset = offset
		return nil
	})
	assert.Equal(t, nil, s.UpdateAt(13, []byte{3}))
	assert.Equal(t, int64(13), gotOffset)
}

func TestFileWriterReader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out.flv")

	var ffw flv.FileWriter
	assert.IsNotNil(t, ffw.WriteRaw([]byte{0}))
	assert.Equal(t, nil, ffw.Open(filename))
	assert.Equal(t, filename, ffw.Name())
	assert.Equal(t, nil, ffw.WriteFlvHeader(flv.PackFlvHeader(true, false)))
	assert.Equal(t, nil, ffw.WriteTag(flv.PackAacSeqHeaderTag([]byte{0x12, 0x10}, 0), base.FlvTagTypeAudio, 0))
	assert.Equal(t, nil, ffw.WriteTag(flv.PackAacRawTag([]byte{0x21}, 23), base.FlvTagTypeAudio, 23))
	// 修改第一个tag的asc
	assert.Equal(t, nil, ffw.UpdateAt(flv.FlvHeaderWithPrevTagSize+flv.TagHeaderSize+2, []byte{0x11, 0x90}))
	assert.Equal(t, nil, ffw.OnMuxingEnd())
	assert.IsNotNil(t, ffw.Dispose())

	tags, err := flv.ReadAllTagsFromFlvFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(tags))
	assert.Equal(t, []byte{0xaf, 0x00, 0x11, 0x90}, tags[0].Payload())
	assert.Equal(t, uint32(23), tags[1].Header.Timestamp)

	_, err = flv.ReadAllTagsFromFlvFile(filepath.Join(t.TempDir(), "notexist.flv"))
	assert.IsNotNil(t, err)
}
