// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"github.com/q191201771/lalflv/pkg/amf0"
	"github.com/q191201771/lalflv/pkg/base"
)

const (
	MetadataName     = "onMetaData"
	setDataFrameName = "@setDataFrame"
)

// MetaData onMetaData中携带的字段
//
// 注意，Pack生成的字段集合只由HasAudio、HasVideo以及Encoder决定，与数值无关。
// 所以占位用的metadata和最终的metadata大小相同，可以原地覆盖
type MetaData struct {
	HasAudio bool
	HasVideo bool

	Duration float64 // 单位秒
	FileSize uint64  // 单位字节

	Width         uint32
	Height        uint32
	VideoCodecId  int
	VideoDataRate float64 // 单位kbps
	FrameRate     float64

	AudioCodecId    int
	AudioDataRate   float64 // 单位kbps
	AudioSampleRate int
	AudioSampleSize int
	Stereo          bool

	Encoder string
}

func NewMetaData(hasAudio, hasVideo bool) MetaData {
	md := MetaData{
		HasAudio: hasAudio,
		HasVideo: hasVideo,
	}
	if hasVideo {
		md.VideoCodecId = base.FlvVideoCodecIdAvc
	}
	if hasAudio {
		md.AudioCodecId = base.FlvAudioCodecIdAac
		md.AudioSampleSize = 16
		md.Stereo = true
	}
	return md
}

// Pack 生成script data，也即 "onMetaData" + ecma array
func (md *MetaData) Pack() []byte {
	var count uint32
	elements := amf0.NewBuilder()
	putNumber := func(name string, v float64) {
		elements.PutNamedNumber(name, v)
		count++
	}
	putBoolean := func(name string, v bool) {
		elements.PutNamedBoolean(name, v)
		count++
	}

	putNumber("duration", md.Duration)
	putNumber("filesize", float64(md.FileSize))
	putBoolean("hasVideo", md.HasVideo)
	putBoolean("hasAudio", md.HasAudio)
	if md.HasVideo {
		putNumber("width", float64(md.Width))
		putNumber("height", float64(md.Height))
		putNumber("videocodecid", float64(md.VideoCodecId))
		putNumber("videodatarate", md.VideoDataRate)
		putNumber("framerate", md.FrameRate)
	}
	if md.HasAudio {
		putNumber("audiocodecid", float64(md.AudioCodecId))
		putNumber("audiodatarate", md.AudioDataRate)
		putNumber("audiosamplerate", float64(md.AudioSampleRate))
		putNumber("audiosamplesize", float64(md.AudioSampleSize))
		putBoolean("stereo", md.Stereo)
	}
	if md.Encoder != "" {
		elements.PutNamedString("encoder", md.Encoder)
		count++
	}

	return amf0.NewBuilder().PutNamedEcmaArray(MetadataName, count, elements.Bytes()).Bytes()
}

// ParseMetadataRaw 解析script data，返回其中的key value
//
// 兼容rtmp中 "@setDataFrame" + "onMetaData" 的形式，value为ecma array或object
func ParseMetadataRaw(script []byte) (map[string]interface{}, error) {
	name, l, err := amf0.ReadString(script)
	if err != nil {
		return nil, err
	}
	pos := l
	if name == setDataFrameName {
		if name, l, err = amf0.ReadString(script[pos:]); err != nil {
			return nil, err
		}
		pos += l
	}
	if name != MetadataName {
		return nil, base.ErrAmfNotExist
	}
	if len(script) <= pos {
		return nil, base.ErrAmfTooShort
	}
	var obj map[string]interface{}
	switch script[pos] {
	case amf0.TypeMarkerEcmaArray:
		obj, _, err = amf0.ReadEcmaArray(script[pos:])
	case amf0.TypeMarkerObject:
		obj, _, err = amf0.ReadObject(script[pos:])
	default:
		err = base.NewErrAmfInvalidType(script[pos])
	}
	return obj, err
}

// ParseMetadata 解析script data，不认识的字段忽略
func ParseMetadata(script []byte) (MetaData, error) {
	var md MetaData
	obj, err := ParseMetadataRaw(script)
	if err != nil {
		return md, err
	}
	number := func(k string) float64 {
		v, _ := obj[k].(float64)
		return v
	}
	boolean := func(k string) bool {
		v, _ := obj[k].(bool)
		return v
	}

	md.Duration = number("duration")
	md.FileSize = uint64(number("filesize"))
	md.Width = uint32(number("width"))
	md.Height = uint32(number("height"))
	md.VideoCodecId = int(number("videocodecid"))
	md.VideoDataRate = number("videodatarate")
	md.FrameRate = number("framerate")
	md.AudioCodecId = int(number("audiocodecid"))
	md.AudioDataRate = number("audiodatarate")
	md.AudioSampleRate = int(number("audiosamplerate"))
	md.AudioSampleSize = int(number("audiosamplesize"))
	md.Stereo = boolean("stereo")
	md.Encoder, _ = obj["encoder"].(string)

	_, hasVideoKey := obj["hasVideo"]
	_, hasAudioKey := obj["hasAudio"]
	md.HasVideo = boolean("hasVideo") || (!hasVideoKey && md.VideoCodecId != 0)
	md.HasAudio = boolean("hasAudio") || (!hasAudioKey && md.AudioCodecId != 0)
	return md, nil
}
