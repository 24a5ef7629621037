// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"context"
	"errors"
	"io"

	"github.com/asticode/go-astits"
	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/base"
)

// TsDemuxer 从MPEG-TS流中读取H264以及AAC的帧
//
// 输出的 base.AvPacket 字段含义：
//   - Timestamp: dts，单位毫秒
//   - Pts:       单位毫秒
//   - Payload:   H264为Annexb格式的一个PES；AAC为包含ADTS头的一帧
//
// 其他类型的流会被忽略
type TsDemuxer struct {
	uniqueKey string

	core    *astits.Demuxer
	streams map[uint16]base.AvPacketPt // key: pid

	pending []base.AvPacket
}

func NewTsDemuxer(ctx context.Context, r io.Reader) *TsDemuxer {
	uk := base.GenUkTsDemuxer()
	Log.Infof("[%s] lifecycle new TsDemuxer.", uk)
	return &TsDemuxer{
		uniqueKey: uk,
		core:      astits.NewDemuxer(ctx, r),
		streams:   make(map[uint16]base.AvPacketPt),
	}
}

func (d *TsDemuxer) UniqueKey() string {
	return d.uniqueKey
}

// ReadAvPacket 读取下一个音视频包
//
// @return 流结束时返回 io.EOF
func (d *TsDemuxer) ReadAvPacket() (base.AvPacket, error) {
	for len(d.pending) == 0 {
		data, err := d.core.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return base.AvPacket{}, io.EOF
			}
			return base.AvPacket{}, base.NewErrMpegts(err)
		}
		if data.PMT != nil {
			d.onPmt(data.PMT)
		}
		if data.PES != nil && data.FirstPacket != nil {
			d.onPes(data.FirstPacket.Header.PID, data.PES)
		}
	}

	pkt := d.pending[0]
	d.pending = d.pending[1:]
	return pkt, nil
}

// Iterate 依次回调流中所有的音视频包，直到流结束或者回调返回错误
func (d *TsDemuxer) Iterate(onAvPacket func(pkt base.AvPacket) error) error {
	for {
		pkt, err := d.ReadAvPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = onAvPacket(pkt); err != nil {
			return err
		}
	}
}

func (d *TsDemuxer) onPmt(pmt *astits.PMTData) {
	for _, es := range pmt.ElementaryStreams {
		if _, ok := d.streams[es.ElementaryPID]; ok {
			continue
		}
		pt := base.AvPacketPtUnknown
		switch es.StreamType {
		case astits.StreamTypeH264Video:
			pt = base.AvPacketPtAvc
		case astits.StreamTypeAACAudio:
			pt = base.AvPacketPtAac
		}
		Log.Debugf("[%s] elementary stream. pid=%d, stream type=%d, pt=%s",
			d.uniqueKey, es.ElementaryPID, es.StreamType, pt.ReadableString())
		d.streams[es.ElementaryPID] = pt
	}
}

func (d *TsDemuxer) onPes(pid uint16, pes *astits.PESData) {
	pt, ok := d.streams[pid]
	if !ok || pt == base.AvPacketPtUnknown {
		return
	}
	if pes.Header == nil || pes.Header.OptionalHeader == nil || pes.Header.OptionalHeader.PTS == nil {
		Log.Warnf("[%s] pes without pts, drop it. pid=%d", d.uniqueKey, pid)
		return
	}
	pts := pes.Header.OptionalHeader.PTS.Base / 90
	dts := pts
	if pes.Header.OptionalHeader.DTS != nil {
		dts = pes.Header.OptionalHeader.DTS.Base / 90
	}

	if pt == base.AvPacketPtAvc {
		d.pending = append(d.pending, base.AvPacket{
			PayloadType: pt,
			Timestamp:   dts,
			Pts:         pts,
			Payload:     pes.Data,
		})
		return
	}

	// 一个PES中可能包含多个ADTS帧，后面的帧的时间戳按采样数累加
	frames, err := aac.SplitAdtsFrames(pes.Data)
	if err != nil {
		Log.Warnf("[%s] split adts frames failed. pid=%d, err=%+v", d.uniqueKey, pid, err)
	}
	for i, frame := range frames {
		ts := pts
		if i > 0 {
			h, _ := aac.ParseAdtsHeader(frame)
			if freq, err := aac.SamplingFrequency(h.SamplingFrequencyIndex); err == nil {
				ts += int64(i) * aac.SamplesPerFrame * 1000 / int64(freq)
			}
		}
		d.pending = append(d.pending, base.AvPacket{
			PayloadType: pt,
			Timestamp:   ts,
			Pts:         ts,
			Payload:     frame,
		})
	}
}
