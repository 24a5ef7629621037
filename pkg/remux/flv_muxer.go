// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package remux

import (
	"encoding/hex"
	"errors"

	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/avc"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/flv"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// FlvMuxer 将H.264的Annexb帧以及带ADTS头的AAC帧打包成flv
//
// 输出顺序为：
//   - flv header
//   - 占位的metadata
//   - avc seq header（收到第一对sps、pps时）
//   - aac seq header（收到第一个aac帧时）
//   - 音视频数据
//   - avc end of sequence（EndMuxing时）
//
// EndMuxing时回写metadata中的duration、filesize、width、height等字段。
//
// 注意，FlvMuxer不是并发安全的，所有方法需要在同一个协程中调用
type FlvMuxer struct {
	uniqueKey string
	option    FlvMuxerOption
	sink      flv.IFlvSink
	observer  IFlvMuxerObserver

	state  muxerState
	broken bool // sink写入失败后不再写入

	metaData          flv.MetaData
	metadataOffset    int64
	metadataTagLength int

	aacSeqHeaderSent bool
	avcSeqHeaderSent bool
	sps              []byte // 从输入帧中拷贝
	pps              []byte

	audioTs timestampRange
	videoTs timestampRange

	audioBytes        uint64
	videoBytes        uint64
	videoFrameCount   int
	totalBytesWritten int64

	apsOption base.AvPacketStreamOption
	ascCtx    *aac.AscContext // 仅 base.AvPacketStreamAudioFormatRawAac 时使用
}

var _ base.IAvPacketStream = &FlvMuxer{}

type FlvMuxerOption struct {
	HasAudio bool
	HasVideo bool

	// Encoder 写入metadata的encoder字段，为空时不写入
	Encoder string

	// FrameRate 写入metadata的framerate字段，为0时根据视频时间戳计算
	FrameRate float64
}

var defaultFlvMuxerOption = FlvMuxerOption{
	HasAudio:  true,
	HasVideo:  true,
	Encoder:   base.LalflvMetadataEncoder,
	FrameRate: 0,
}

type ModFlvMuxerOption func(option *FlvMuxerOption)

// MuxerErrorKind 通过 IFlvMuxerObserver.OnMuxerError 通知的错误类型
type MuxerErrorKind int

const (
	MuxerErrorKindCreateFailed MuxerErrorKind = iota + 1 // 创建文件失败
	MuxerErrorKindWriteFailed                            // 写入失败
)

func (k MuxerErrorKind) ReadableString() string {
	switch k {
	case MuxerErrorKindCreateFailed:
		return "CreateFailed"
	case MuxerErrorKindWriteFailed:
		return "WriteFailed"
	}
	return "unknown"
}

type IFlvMuxerObserver interface {
	// OnMuxingDataSize 每次成功写入后回调
	//
	// @param tagType: flv header时为0
	//
	OnMuxingDataSize(size int, tagType uint8)

	OnMuxerError(kind MuxerErrorKind, err error)

	// OnMuxerComplete EndMuxing完成后回调，只回调一次
	OnMuxerComplete()
}

type muxerState int

const (
	muxerStateCreated muxerState = iota
	muxerStateStreaming
	muxerStateFinalized
)

type timestampRange struct {
	valid bool
	start int64
	last  int64
}

func (r *timestampRange) update(ts int64) {
	if !r.valid {
		r.valid = true
		r.start = ts
	}
	r.last = ts
}

func (r *timestampRange) span() int64 {
	if !r.valid {
		return 0
	}
	return r.last - r.start
}

// NewFlvMuxer 写入flv header以及占位的metadata
//
// @param observer: 可以为nil
func NewFlvMuxer(sink flv.IFlvSink, observer IFlvMuxerObserver, modOptions ...ModFlvMuxerOption) (*FlvMuxer, error) {
	option := defaultFlvMuxerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if !option.HasAudio && !option.HasVideo {
		return nil, base.ErrRemuxNoAudioVideo
	}
	if observer == nil {
		observer = dummyFlvMuxerObserver{}
	}

	m := &FlvMuxer{
		uniqueKey: base.GenUkFlvMuxer(),
		option:    option,
		sink:      sink,
		observer:  observer,
		state:     muxerStateCreated,
		metaData:  flv.NewMetaData(option.HasAudio, option.HasVideo),
		apsOption: base.DefaultApsOption,
	}
	m.metaData.Encoder = option.Encoder
	m.metaData.FrameRate = option.FrameRate
	Log.Infof("[%s] lifecycle new FlvMuxer. option=%+v", m.uniqueKey, option)

	header := flv.PackFlvHeader(option.HasAudio, option.HasVideo)
	if err := m.sink.WriteFlvHeader(header); err != nil {
		m.onWriteError(err)
		return nil, err
	}
	m.onWritten(header, 0)

	m.metadataOffset = m.totalBytesWritten
	tag := flv.PackMetadataTag(m.metaData.Pack(), 0)
	m.metadataTagLength = len(tag)
	if err := m.writeTag(tag, base.FlvTagTypeMetadata, 0); err != nil {
		return nil, err
	}

	m.state = muxerStateStreaming
	return m, nil
}

// NewFlvFileMuxer 创建文件，并在文件上创建 FlvMuxer
//
// 创建文件失败时，回调 MuxerErrorKindCreateFailed
func NewFlvFileMuxer(filename string, observer IFlvMuxerObserver, modOptions ...ModFlvMuxerOption) (*FlvMuxer, error) {
	var fw flv.FileWriter
	if err := fw.Open(filename); err != nil {
		Log.Errorf("create flv file failed. filename=%s, err=%+v", filename, err)
		if observer != nil {
			observer.OnMuxerError(MuxerErrorKindCreateFailed, err)
		}
		return nil, err
	}
	m, err := NewFlvMuxer(&fw, observer, modOptions...)
	if err != nil {
		_ = fw.Dispose()
		return nil, err
	}
	return m, nil
}

func (m *FlvMuxer) UniqueKey() string {
	return m.uniqueKey
}

// TotalBytesWritten 目前为止写入的字节数，包含flv header
func (m *FlvMuxer) TotalBytesWritten() int64 {
	return m.totalBytesWritten
}

// MuxAac
//
// @param frame:     包含ADTS头的aac帧。函数调用结束后，内部不持有该内存块
// @param timestamp: 单位毫秒
func (m *FlvMuxer) MuxAac(frame []byte, timestamp int64) error {
	if !m.option.HasAudio {
		return nil
	}
	if err := m.checkWritable(); err != nil {
		return err
	}

	h, err := aac.ParseAdtsHeader(frame)
	if err != nil {
		Log.Warnf("[%s] invalid adts frame, drop it. err=%+v, frame=%s", m.uniqueKey, err, hex.Dump(nazabytes.Prefix(frame, 32)))
		return err
	}
	if len(frame) < h.HeaderLength() {
		Log.Warnf("[%s] adts frame shorter than its header, drop it. frame=%s", m.uniqueKey, hex.EncodeToString(frame))
		return base.NewErrShortBuffer(h.HeaderLength(), len(frame), "adts frame")
	}
	ts := uint32(timestamp)

	if !m.aacSeqHeaderSent {
		ascCtx := aac.NewAscContextWithAdtsHeader(&h)
		if err = m.writeTag(flv.PackAacSeqHeaderTag(ascCtx.Pack(), ts), base.FlvTagTypeAudio, ts); err != nil {
			return err
		}
		if m.metaData.AudioSampleRate, err = ascCtx.GetSamplingFrequency(); err != nil {
			Log.Warnf("[%s] invalid sampling frequency index. asc=%+v", m.uniqueKey, ascCtx)
			m.metaData.AudioSampleRate = 0
		}
		m.metaData.Stereo = ascCtx.IsStereo()
		m.aacSeqHeaderSent = true
		Log.Debugf("[%s] aac seq header sent. asc=%+v", m.uniqueKey, ascCtx)
	}

	tag, err := flv.PackAacRawTagWithAdts(frame, ts)
	if err != nil {
		return err
	}
	if err = m.writeTag(tag, base.FlvTagTypeAudio, ts); err != nil {
		return err
	}
	m.audioBytes += uint64(len(tag) - flv.TagHeaderSize - flv.PrevTagSizeFieldSize - 2)
	m.audioTs.update(timestamp)
	return nil
}

// MuxAvc
//
// 第一对sps、pps出现之前的帧会被丢弃
//
// @param frame: Annexb格式的帧。函数调用结束后，内部不持有该内存块
// @param pts:   单位毫秒
// @param dts:   单位毫秒，也即flv tag的时间戳
func (m *FlvMuxer) MuxAvc(frame []byte, pts, dts int64, isKeyFrame bool) error {
	if !m.option.HasVideo {
		return nil
	}
	if err := m.checkWritable(); err != nil {
		return err
	}

	nals := avc.SplitNaluAnnexb(frame)
	if len(nals) == 0 {
		return nil
	}
	ts := uint32(dts)
	cts := int32(pts - dts)

	if !m.avcSeqHeaderSent {
		for _, nal := range nals {
			switch avc.ParseNaluType(nal[0]) {
			case avc.NaluTypeSps:
				if m.sps == nil {
					m.sps = append([]byte(nil), nal...)
				}
			case avc.NaluTypePps:
				if m.pps == nil {
					m.pps = append([]byte(nil), nal...)
				}
			}
		}
		if m.sps != nil && m.pps != nil {
			dcr, err := avc.BuildDecoderConfigurationRecord(m.sps, m.pps)
			if err != nil {
				// 丢弃这一对，等待下一对
				Log.Warnf("[%s] build avc seq header failed. err=%+v, sps=%s, pps=%s",
					m.uniqueKey, err, hex.EncodeToString(m.sps), hex.EncodeToString(m.pps))
				m.sps, m.pps = nil, nil
				return err
			}
			if err = m.writeTag(flv.PackAvcSeqHeaderTag(dcr, ts, cts), base.FlvTagTypeVideo, ts); err != nil {
				return err
			}
			m.avcSeqHeaderSent = true
			Log.Debugf("[%s] avc seq header sent. sps=%s, pps=%s", m.uniqueKey, hex.EncodeToString(m.sps), hex.EncodeToString(m.pps))
		}
		if !m.avcSeqHeaderSent {
			Log.Debugf("[%s] drop video frame before sps and pps. dts=%d", m.uniqueKey, dts)
			return nil
		}
	}

	tag, err := flv.PackAvcNaluTag(nals, isKeyFrame, ts, cts)
	if err != nil {
		return err
	}
	if err = m.writeTag(tag, base.FlvTagTypeVideo, ts); err != nil {
		return err
	}
	m.videoBytes += uint64(len(tag) - flv.TagHeaderSize - flv.PrevTagSizeFieldSize)
	m.videoFrameCount++
	m.videoTs.update(dts)
	return nil
}

// WithOption 修改 FeedAvPacket 输入数据的格式，默认为Annexb视频以及带ADTS头的音频
func (m *FlvMuxer) WithOption(modOption func(option *base.AvPacketStreamOption)) {
	modOption(&m.apsOption)
}

// FeedAudioSpecificConfig 输入音频为 base.AvPacketStreamAudioFormatRawAac 时，需要先调用该函数
func (m *FlvMuxer) FeedAudioSpecificConfig(asc []byte) error {
	ascCtx, err := aac.NewAscContext(asc)
	if err != nil {
		return err
	}
	m.ascCtx = ascCtx
	return nil
}

// FeedAvPacket 输入 base.AvPacket
//
// 视频帧是否为关键帧由帧中是否包含IDR决定
func (m *FlvMuxer) FeedAvPacket(pkt base.AvPacket) error {
	switch {
	case pkt.IsAudio():
		frame := pkt.Payload
		if m.apsOption.AudioFormat == base.AvPacketStreamAudioFormatRawAac {
			if m.ascCtx == nil {
				return base.ErrRemuxNoAsc
			}
			header, err := m.ascCtx.PackAdtsHeader(len(pkt.Payload))
			if err != nil {
				return err
			}
			frame = append(header, pkt.Payload...)
		}
		return m.MuxAac(frame, pkt.Timestamp)
	case pkt.IsVideo():
		var nals [][]byte
		frame := pkt.Payload
		if m.apsOption.VideoFormat == base.AvPacketStreamVideoFormatAvcc {
			if err := avc.IterateNaluAvcc(pkt.Payload, func(nal []byte) {
				nals = append(nals, nal)
			}); err != nil {
				return err
			}
			frame = avc.JoinNaluAnnexb(nals)
		} else {
			nals = avc.SplitNaluAnnexb(frame)
		}
		return m.MuxAvc(frame, pkt.Pts, pkt.Timestamp, avc.HasIdr(nals))
	}
	Log.Warnf("[%s] unsupported packet. type=%s", m.uniqueKey, pkt.PayloadType.ReadableString())
	return nil
}

// EndMuxing 写入avc end of sequence，回写metadata，并结束sink
//
// 重复调用直接返回nil
//
// @return 返回过程中遇到的第一个错误
func (m *FlvMuxer) EndMuxing() error {
	if m.state == muxerStateFinalized {
		return nil
	}
	m.state = muxerStateFinalized

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if m.option.HasVideo && !m.broken {
		var ts uint32
		if m.videoTs.valid {
			ts = uint32(m.videoTs.last)
		}
		keep(m.writeTag(flv.PackAvcEosTag(ts), base.FlvTagTypeVideo, ts))
	}

	if !m.broken {
		keep(m.updateMetadata())
	}

	if err := m.sink.OnMuxingEnd(); err != nil {
		Log.Errorf("[%s] end sink failed. err=%+v", m.uniqueKey, err)
		m.observer.OnMuxerError(MuxerErrorKindWriteFailed, err)
		keep(err)
	}

	Log.Infof("[%s] lifecycle end FlvMuxer. metadata=%+v, bytes=%d", m.uniqueKey, m.metaData, m.totalBytesWritten)
	m.observer.OnMuxerComplete()
	return firstErr
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *FlvMuxer) updateMetadata() error {
	md := &m.metaData

	videoSpan := m.videoTs.span()
	audioSpan := m.audioTs.span()
	span := videoSpan
	if audioSpan > span {
		span = audioSpan
	}
	md.Duration = float64(span) / 1000
	md.FileSize = uint64(m.totalBytesWritten)

	if m.sps != nil {
		sps, err := avc.ParseSps(m.sps)
		if err != nil {
			Log.Warnf("[%s] parse cached sps failed, width and height unset. err=%+v", m.uniqueKey, err)
		} else {
			md.Width = sps.Width()
			md.Height = sps.Height()
		}
	}
	if m.option.FrameRate == 0 && videoSpan > 0 && m.videoFrameCount > 1 {
		md.FrameRate = float64(m.videoFrameCount-1) * 1000 / float64(videoSpan)
	}
	if videoSpan > 0 {
		md.VideoDataRate = float64(m.videoBytes) * 8 / float64(videoSpan)
	}
	if audioSpan > 0 {
		md.AudioDataRate = float64(m.audioBytes) * 8 / float64(audioSpan)
	}

	tag := flv.PackMetadataTag(md.Pack(), 0)
	if len(tag) != m.metadataTagLength {
		err := base.NewErrRemuxMetadataSize(m.metadataTagLength, len(tag))
		Log.Errorf("[%s] %+v", m.uniqueKey, err)
		return err
	}

	if err := m.sink.UpdateAt(m.metadataOffset, tag); err != nil {
		if errors.Is(err, base.ErrFlvSinkNotSeek) {
			Log.Warnf("[%s] sink not support update, final metadata dropped.", m.uniqueKey)
			return nil
		}
		m.onWriteError(err)
		return err
	}
	return nil
}

func (m *FlvMuxer) checkWritable() error {
	if m.state == muxerStateFinalized {
		return base.ErrRemuxFinalized
	}
	if m.broken {
		return base.ErrRemuxSinkBroken
	}
	return nil
}

func (m *FlvMuxer) writeTag(b []byte, tagType uint8, timestamp uint32) error {
	if m.broken {
		return base.ErrRemuxSinkBroken
	}
	if err := m.sink.WriteTag(b, tagType, timestamp); err != nil {
		m.onWriteError(err)
		return err
	}
	m.onWritten(b, tagType)
	return nil
}

func (m *FlvMuxer) onWritten(b []byte, tagType uint8) {
	m.totalBytesWritten += int64(len(b))
	m.observer.OnMuxingDataSize(len(b), tagType)
}

func (m *FlvMuxer) onWriteError(err error) {
	Log.Errorf("[%s] write failed. err=%+v", m.uniqueKey, err)
	m.broken = true
	m.observer.OnMuxerError(MuxerErrorKindWriteFailed, err)
}

type dummyFlvMuxerObserver struct{}

func (dummyFlvMuxerObserver) OnMuxingDataSize(size int, tagType uint8)    {}
func (dummyFlvMuxerObserver) OnMuxerError(kind MuxerErrorKind, err error) {}
func (dummyFlvMuxerObserver) OnMuxerComplete()                            {}
