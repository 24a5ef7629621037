// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package remux_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	yamf0 "github.com/yutopp/go-amf0"

	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/avc"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/flv"
	"github.com/q191201771/lalflv/pkg/remux"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/fake"
)

var (
	goldenSps = []byte{0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01, 0x40, 0x16, 0xe4}
	goldenPps = []byte{0x68, 0xce, 0x3c, 0x80}
	goldenIdr = []byte{0x65, 0x88, 0x84, 0x21}
	goldenP   = []byte{0x41, 0x9a, 0x02, 0x03}
)

func annexb(nals ...[]byte) []byte {
	var out []byte
	for _, nal := range nals {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, nal...)
	}
	return out
}

func adtsFrame(raw ...byte) []byte {
	ctx := aac.AscContext{AudioObjectType: 2, SamplingFrequencyIndex: aac.AscSamplingFrequencyIndex44100, ChannelConfiguration: 2}
	header, _ := ctx.PackAdtsHeader(len(raw))
	return append(header, raw...)
}

type observer struct {
	dataSize   int
	tagCount   map[uint8]int
	errKinds   []remux.MuxerErrorKind
	completeCt int
}

func newObserver() *observer {
	return &observer{tagCount: make(map[uint8]int)}
}

func (o *observer) OnMuxingDataSize(size int, tagType uint8) {
	o.dataSize += size
	o.tagCount[tagType]++
}

func (o *observer) OnMuxerError(kind remux.MuxerErrorKind, err error) {
	o.errKinds = append(o.errKinds, kind)
}

func (o *observer) OnMuxerComplete() {
	o.completeCt++
}

func readTags(t *testing.T, b []byte) []flv.Tag {
	rd := bytes.NewReader(b[flv.FlvHeaderWithPrevTagSize:])
	var tags []flv.Tag
	for rd.Len() > 0 {
		tag, err := flv.ReadTag(rd)
		assert.Equal(t, nil, err)
		assert.Equal(t, flv.TagHeaderSize+tag.Header.DataSize, tag.PrevTagSize())
		tags = append(tags, tag)
	}
	return tags
}

func TestFlvMuxer(t *testing.T) {
	sink := flv.NewBufferSink()
	obs := newObserver()
	m, err := remux.NewFlvMuxer(sink, obs)
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, m.MuxAvc(annexb(goldenSps, goldenPps, goldenIdr), 0, 0, true))
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x21, 0x22), 0))
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenP), 80, 40, false))
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x23), 23))
	assert.Equal(t, nil, m.EndMuxing())

	b := sink.Bytes()
	assert.Equal(t, true, sink.Ended())
	assert.Equal(t, []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}, b[:13])
	assert.Equal(t, int64(len(b)), m.TotalBytesWritten())
	assert.Equal(t, len(b), obs.dataSize)
	assert.Equal(t, 1, obs.completeCt)
	assert.Equal(t, 0, len(obs.errKinds))

	tags := readTags(t, b)
	assert.Equal(t, 8, len(tags))
	assert.Equal(t, true, tags[0].IsMetadata())
	assert.Equal(t, true, tags[1].IsAvcKeySeqHeader())
	assert.Equal(t, true, tags[2].IsAvcKeyNalu())
	assert.Equal(t, true, tags[3].IsAacSeqHeader())
	assert.Equal(t, true, tags[4].IsAacRaw())
	assert.Equal(t, true, tags[5].IsAvcInterNalu())
	assert.Equal(t, true, tags[6].IsAacRaw())
	assert.Equal(t, true, tags[7].IsAvcEos())

	// 所有nalu都加上4字节长度
	assert.Equal(t, 5+3*4+len(goldenSps)+len(goldenPps)+len(goldenIdr), int(tags[2].Header.DataSize))
	assert.Equal(t, []byte{0xaf, 0x00, 0x12, 0x10}, tags[3].Payload())
	assert.Equal(t, []byte{0xaf, 0x01, 0x21, 0x22}, tags[4].Payload())
	assert.Equal(t, uint32(40), tags[5].Header.Timestamp)
	assert.Equal(t, int32(40), tags[5].CompositionTime())
	assert.Equal(t, uint32(23), tags[6].Header.Timestamp)
	assert.Equal(t, uint32(40), tags[7].Header.Timestamp)

	md, err := flv.ParseMetadata(tags[0].Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(1280), md.Width)
	assert.Equal(t, uint32(720), md.Height)
	assert.Equal(t, 0.04, md.Duration)
	assert.Equal(t, uint64(len(b)), md.FileSize)
	assert.Equal(t, float64(25), md.FrameRate)
	assert.Equal(t, 44100, md.AudioSampleRate)
	assert.Equal(t, true, md.Stereo)
	assert.Equal(t, base.LalflvMetadataEncoder, md.Encoder)

	// 重复调用没有任何输出
	assert.Equal(t, nil, m.EndMuxing())
	assert.Equal(t, len(b), len(sink.Bytes()))
	assert.Equal(t, 1, obs.completeCt)

	assert.Equal(t, true, errors.Is(m.MuxAac(adtsFrame(0x24), 46), base.ErrRemuxFinalized))
}

func TestFlvMuxerMetadataOracle(t *testing.T) {
	sink := flv.NewBufferSink()
	m, err := remux.NewFlvMuxer(sink, nil, func(option *remux.FlvMuxerOption) {
		option.FrameRate = 30
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenSps, goldenPps, goldenIdr), 0, 0, true))
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenP), 2000, 2000, false))
	assert.Equal(t, nil, m.EndMuxing())

	tags := readTags(t, sink.Bytes())
	dec := yamf0.NewDecoder(bytes.NewReader(tags[0].Payload()))
	var name string
	assert.Equal(t, nil, dec.Decode(&name))
	assert.Equal(t, "onMetaData", name)
	var v interface{}
	assert.Equal(t, nil, dec.Decode(&v))
	arr, ok := v.(yamf0.ECMAArray)
	assert.Equal(t, true, ok)
	assert.Equal(t, float64(2), arr["duration"])
	assert.Equal(t, float64(len(sink.Bytes())), arr["filesize"])
	assert.Equal(t, float64(1280), arr["width"])
	assert.Equal(t, float64(30), arr["framerate"])
	assert.Equal(t, float64(7), arr["videocodecid"])
	assert.Equal(t, float64(10), arr["audiocodecid"])
}

func TestFlvMuxerDropBeforeSpsPps(t *testing.T) {
	sink := flv.NewBufferSink()
	obs := newObserver()
	m, err := remux.NewFlvMuxer(sink, obs, func(option *remux.FlvMuxerOption) {
		option.HasAudio = false
	})
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, m.MuxAvc(annexb(goldenIdr), 0, 0, true))
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenP), 40, 40, false))
	// 只有sps，还不够
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenSps, goldenP), 80, 80, false))
	// 空帧
	assert.Equal(t, nil, m.MuxAvc(nil, 100, 100, false))
	assert.Equal(t, 0, obs.tagCount[base.FlvTagTypeVideo])

	assert.Equal(t, nil, m.MuxAvc(annexb(goldenPps, goldenIdr), 120, 120, true))
	assert.Equal(t, 2, obs.tagCount[base.FlvTagTypeVideo])

	// 音频关闭
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x21), 0))
	assert.Equal(t, nil, m.EndMuxing())

	b := sink.Bytes()
	assert.Equal(t, uint8(0x01), b[4])
	tags := readTags(t, b)
	assert.Equal(t, 4, len(tags))
	assert.Equal(t, true, tags[1].IsAvcKeySeqHeader())
	assert.Equal(t, uint32(120), tags[1].Header.Timestamp)
	assert.Equal(t, true, tags[3].IsAvcEos())
	assert.Equal(t, uint32(120), tags[3].Header.Timestamp)

	md, err := flv.ParseMetadata(tags[0].Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, false, md.HasAudio)
	assert.Equal(t, float64(0), md.Duration)
}

func TestFlvMuxerAudioOnly(t *testing.T) {
	sink := flv.NewBufferSink()
	m, err := remux.NewFlvMuxer(sink, nil, func(option *remux.FlvMuxerOption) {
		option.HasVideo = false
		option.Encoder = ""
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenSps, goldenPps, goldenIdr), 0, 0, true))
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x21), 0))
	assert.IsNotNil(t, m.MuxAac([]byte{0x00, 0x01}, 23))
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x22), 1000))
	assert.Equal(t, nil, m.EndMuxing())

	tags := readTags(t, sink.Bytes())
	assert.Equal(t, 4, len(tags))
	for _, tag := range tags[1:] {
		assert.Equal(t, base.FlvTagTypeAudio, tag.Header.Type)
	}
	md, err := flv.ParseMetadata(tags[0].Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, float64(1), md.Duration)
	assert.Equal(t, "", md.Encoder)
}

func TestFlvMuxerAdtsShorterThanHeader(t *testing.T) {
	sink := flv.NewBufferSink()
	obs := newObserver()
	m, err := remux.NewFlvMuxer(sink, obs, func(option *remux.FlvMuxerOption) {
		option.HasVideo = false
	})
	assert.Equal(t, nil, err)

	// protection_absent为0，头部需要9字节，实际只有7字节
	err = m.MuxAac([]byte{0xff, 0xf0, 0x50, 0x80, 0x01, 0x3f, 0xfc}, 0)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
	assert.Equal(t, 0, obs.tagCount[base.FlvTagTypeAudio])

	// 带crc的完整帧
	assert.Equal(t, nil, m.MuxAac([]byte{0xff, 0xf0, 0x50, 0x80, 0x01, 0x5f, 0xfc, 0xab, 0xcd, 0x21}, 0))
	assert.Equal(t, nil, m.MuxAac(adtsFrame(0x22), 23))
	assert.Equal(t, nil, m.EndMuxing())
	assert.Equal(t, 3, obs.tagCount[base.FlvTagTypeAudio])

	tags := readTags(t, sink.Bytes())
	assert.Equal(t, 4, len(tags))
	assert.Equal(t, true, tags[1].IsAacSeqHeader())
	assert.Equal(t, []byte{0xaf, 0x01, 0x21}, tags[2].Payload())
	assert.Equal(t, []byte{0xaf, 0x01, 0x22}, tags[3].Payload())
}

func TestFlvMuxerRawAacTooLarge(t *testing.T) {
	sink := flv.NewBufferSink()
	obs := newObserver()
	m, err := remux.NewFlvMuxer(sink, obs, func(option *remux.FlvMuxerOption) {
		option.HasVideo = false
	})
	assert.Equal(t, nil, err)
	m.WithOption(func(option *base.AvPacketStreamOption) {
		option.AudioFormat = base.AvPacketStreamAudioFormatRawAac
	})
	assert.Equal(t, nil, m.FeedAudioSpecificConfig([]byte{0x12, 0x10}))

	// 加上ADTS头后超过13位的aac_frame_length
	pkt := base.AvPacket{PayloadType: base.AvPacketPtAac, Payload: make([]byte, aac.MaxAdtsFrameLength-aac.AdtsHeaderLength+1)}
	assert.Equal(t, true, errors.Is(m.FeedAvPacket(pkt), base.ErrAdtsFrameLength))
	assert.Equal(t, 0, obs.tagCount[base.FlvTagTypeAudio])

	pkt.Payload = pkt.Payload[:len(pkt.Payload)-1]
	assert.Equal(t, nil, m.FeedAvPacket(pkt))
	assert.Equal(t, nil, m.EndMuxing())

	tags := readTags(t, sink.Bytes())
	assert.Equal(t, 3, len(tags))
	assert.Equal(t, uint32(2+len(pkt.Payload)), tags[2].Header.DataSize)
}

func TestFlvMuxerNoAudioVideo(t *testing.T) {
	_, err := remux.NewFlvMuxer(flv.NewBufferSink(), nil, func(option *remux.FlvMuxerOption) {
		option.HasAudio = false
		option.HasVideo = false
	})
	assert.Equal(t, true, errors.Is(err, base.ErrRemuxNoAudioVideo))
}

func TestFlvMuxerWriteFailed(t *testing.T) {
	// flv header写入失败
	mw := fake.NewWriter(fake.WriterTypeReturnError)
	obs := newObserver()
	_, err := remux.NewFlvMuxer(flv.NewWriterSink(mw, nil), obs)
	assert.IsNotNil(t, err)
	assert.Equal(t, []remux.MuxerErrorKind{remux.MuxerErrorKindWriteFailed}, obs.errKinds)

	// 0: flv header, 1: metadata, 2: avc seq header
	mw = fake.NewWriter(fake.WriterTypeDoNothing)
	mw.SetSpecificType(map[uint32]fake.WriterType{2: fake.WriterTypeReturnError})
	obs = newObserver()
	m, err := remux.NewFlvMuxer(flv.NewWriterSink(mw, nil), obs)
	assert.Equal(t, nil, err)
	assert.IsNotNil(t, m.MuxAvc(annexb(goldenSps, goldenPps, goldenIdr), 0, 0, true))
	assert.Equal(t, []remux.MuxerErrorKind{remux.MuxerErrorKindWriteFailed}, obs.errKinds)
	assert.Equal(t, true, errors.Is(m.MuxAac(adtsFrame(0x21), 0), base.ErrRemuxSinkBroken))
	assert.Equal(t, nil, m.EndMuxing())
	assert.Equal(t, 1, obs.completeCt)
	assert.Equal(t, 1, len(obs.errKinds))
}

func TestFlvMuxerStreamingSink(t *testing.T) {
	var out bytes.Buffer
	var updated []byte
	var offset int64
	m, err := remux.NewFlvMuxer(flv.NewWriterSink(&out, func(o int64, b []byte) error {
		offset = o
		updated = append([]byte(nil), b...)
		return nil
	}), nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.MuxAvc(annexb(goldenSps, goldenPps, goldenIdr), 0, 0, true))
	assert.Equal(t, nil, m.EndMuxing())

	assert.Equal(t, int64(flv.FlvHeaderWithPrevTagSize), offset)
	placeholder := readTags(t, out.Bytes())[0]
	assert.Equal(t, len(placeholder.Raw), len(updated))
	md, err := flv.ParseMetadata(placeholder.Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0), md.Width)

	tag, err := flv.ReadTag(bytes.NewReader(updated))
	assert.Equal(t, nil, err)
	md, err = flv.ParseMetadata(tag.Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(1280), md.Width)

	// 不支持回写时，最终的metadata被丢弃，不是错误
	out.Reset()
	m, err = remux.NewFlvMuxer(flv.NewWriterSink(&out, nil), nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.EndMuxing())
}

func TestFlvFileMuxer(t *testing.T) {
	obs := newObserver()
	_, err := remux.NewFlvFileMuxer(filepath.Join(t.TempDir(), "notexist", "out.flv"), obs)
	assert.IsNotNil(t, err)
	assert.Equal(t, []remux.MuxerErrorKind{remux.MuxerErrorKindCreateFailed}, obs.errKinds)

	filename := filepath.Join(t.TempDir(), "out.flv")
	m, err := remux.NewFlvFileMuxer(filename, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, m.FeedAvPacket(base.AvPacket{
		PayloadType: base.AvPacketPtAvc,
		Payload:     annexb(goldenSps, goldenPps, goldenIdr),
	}))
	assert.Equal(t, nil, m.FeedAvPacket(base.AvPacket{
		PayloadType: base.AvPacketPtAac,
		Timestamp:   10,
		Payload:     adtsFrame(0x21),
	}))
	assert.Equal(t, nil, m.FeedAvPacket(base.AvPacket{
		PayloadType: base.AvPacketPtAvc,
		Timestamp:   40,
		Pts:         40,
		Payload:     annexb(goldenP),
	}))
	assert.Equal(t, nil, m.FeedAvPacket(base.AvPacket{PayloadType: base.AvPacketPtUnknown}))
	assert.Equal(t, nil, m.EndMuxing())

	tags, err := flv.ReadAllTagsFromFlvFile(filename)
	assert.Equal(t, nil, err)
	assert.Equal(t, 7, len(tags))
	assert.Equal(t, true, tags[2].IsAvcKeyNalu())
	assert.Equal(t, true, tags[5].IsAvcInterNalu())

	md, err := flv.ParseMetadata(tags[0].Payload())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(720), md.Height)
	assert.Equal(t, 0.04, md.Duration)
	assert.Equal(t, uint64(m.TotalBytesWritten()), md.FileSize)
}

func TestFlvMuxerAvPacketStreamOption(t *testing.T) {
	sink := flv.NewBufferSink()
	m, err := remux.NewFlvMuxer(sink, nil)
	assert.Equal(t, nil, err)
	m.WithOption(func(option *base.AvPacketStreamOption) {
		option.AudioFormat = base.AvPacketStreamAudioFormatRawAac
		option.VideoFormat = base.AvPacketStreamVideoFormatAvcc
	})

	audio := base.AvPacket{PayloadType: base.AvPacketPtAac, Payload: []byte{0x21, 0x22}}
	assert.Equal(t, true, errors.Is(m.FeedAvPacket(audio), base.ErrRemuxNoAsc))
	assert.IsNotNil(t, m.FeedAudioSpecificConfig([]byte{0x12}))
	assert.Equal(t, nil, m.FeedAudioSpecificConfig([]byte{0x12, 0x10}))
	assert.Equal(t, nil, m.FeedAvPacket(audio))

	video := base.AvPacket{PayloadType: base.AvPacketPtAvc, Payload: avc.JoinNaluAvcc([][]byte{goldenSps, goldenPps, goldenIdr})}
	assert.Equal(t, nil, m.FeedAvPacket(video))
	video.Payload = video.Payload[:len(video.Payload)-1]
	assert.IsNotNil(t, m.FeedAvPacket(video))
	assert.Equal(t, nil, m.EndMuxing())

	tags := readTags(t, sink.Bytes())
	assert.Equal(t, 6, len(tags))
	assert.Equal(t, []byte{0xaf, 0x00, 0x12, 0x10}, tags[1].Payload())
	assert.Equal(t, []byte{0xaf, 0x01, 0x21, 0x22}, tags[2].Payload())
	assert.Equal(t, true, tags[3].IsAvcKeySeqHeader())
	assert.Equal(t, true, tags[4].IsAvcKeyNalu())
	assert.Equal(t, avc.JoinNaluAvcc([][]byte{goldenSps, goldenPps, goldenIdr}), tags[4].Payload()[5:])
}
