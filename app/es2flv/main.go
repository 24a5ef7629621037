// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/avc"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/mpegts"
	"github.com/q191201771/lalflv/pkg/remux"
	"github.com/q191201771/naza/pkg/bininfo"
	log "github.com/q191201771/naza/pkg/nazalog"
)

// 将h264、aac裸流文件，或者ts文件，转换为flv文件
//
// Usage:
// ./bin/es2flv -v /tmp/in.h264 -a /tmp/in.aac -o /tmp/out.flv
// ./bin/es2flv -t /tmp/in.ts -o /tmp/out.flv
// ./bin/es2flv -c ./conf/es2flv.conf.json -v /tmp/in.h264 -o /tmp/out.flv

type muxerObserver struct {
	audioBytes int
	videoBytes int
}

func (o *muxerObserver) OnMuxingDataSize(size int, tagType uint8) {
	switch tagType {
	case base.FlvTagTypeAudio:
		o.audioBytes += size
	case base.FlvTagTypeVideo:
		o.videoBytes += size
	}
}

func (o *muxerObserver) OnMuxerError(kind remux.MuxerErrorKind, err error) {
	log.Errorf("muxer error. kind=%s, err=%+v", kind.ReadableString(), err)
}

func (o *muxerObserver) OnMuxerComplete() {
	log.Infof("muxer complete. audio bytes=%d, video bytes=%d", o.audioBytes, o.videoBytes)
}

func main() {
	confFile, tsFileName, avcFileName, aacFileName, flvFileName := parseFlag()
	config := loadConf(confFile)
	initLog(config.Log)
	log.Infof("bininfo: %s", bininfo.StringifySingleLine())

	var observer muxerObserver
	muxer, err := remux.NewFlvFileMuxer(flvFileName, &observer, func(option *remux.FlvMuxerOption) {
		option.HasAudio = tsFileName != "" || aacFileName != ""
		option.HasVideo = tsFileName != "" || avcFileName != ""
		option.Encoder = config.Encoder
		if config.WriteFrameRate {
			option.FrameRate = config.FrameRate
		}
	})
	log.Assert(nil, err)

	if tsFileName != "" {
		err = muxTsFile(muxer, tsFileName)
	} else {
		err = muxEsFiles(muxer, avcFileName, aacFileName, config.FrameRate)
	}
	if err != nil {
		log.Errorf("mux failed. err=%+v", err)
	}

	err = muxer.EndMuxing()
	log.Assert(nil, err)
	log.Infof("done. file=%s, size=%d", flvFileName, muxer.TotalBytesWritten())
}

func muxTsFile(muxer *remux.FlvMuxer, filename string) error {
	fp, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer fp.Close()

	demuxer := mpegts.NewTsDemuxer(context.Background(), bufio.NewReader(fp))
	return demuxer.Iterate(func(pkt base.AvPacket) error {
		return feedAvPacket(muxer, pkt)
	})
}

// feedAvPacket 单个包的错误只丢弃该包，sink出错后停止
func feedAvPacket(muxer *remux.FlvMuxer, pkt base.AvPacket) error {
	err := muxer.FeedAvPacket(pkt)
	if err == nil {
		return nil
	}
	if errors.Is(err, base.ErrRemuxSinkBroken) {
		return err
	}
	log.Warnf("drop packet. pkt=%s, err=%+v", pkt.ReadableString(), err)
	return nil
}

func muxEsFiles(muxer *remux.FlvMuxer, avcFileName, aacFileName string, frameRate float64) error {
	var (
		videoPkts []base.AvPacket
		audioPkts []base.AvPacket
	)
	if avcFileName != "" {
		b, err := os.ReadFile(avcFileName)
		if err != nil {
			return err
		}
		videoPkts = splitAvcFile(b, frameRate)
		log.Infof("read h264 file succ. file=%s, frames=%d", avcFileName, len(videoPkts))
	}
	if aacFileName != "" {
		b, err := os.ReadFile(aacFileName)
		if err != nil {
			return err
		}
		if audioPkts, err = splitAacFile(b); err != nil {
			log.Warnf("aac file tail broken, ignore it. err=%+v", err)
		}
		log.Infof("read aac file succ. file=%s, frames=%d", aacFileName, len(audioPkts))
	}

	// 按时间戳交织音视频
	for len(videoPkts) != 0 || len(audioPkts) != 0 {
		var pkt base.AvPacket
		if len(audioPkts) == 0 || (len(videoPkts) != 0 && videoPkts[0].Timestamp <= audioPkts[0].Timestamp) {
			pkt, videoPkts = videoPkts[0], videoPkts[1:]
		} else {
			pkt, audioPkts = audioPkts[0], audioPkts[1:]
		}
		if err := feedAvPacket(muxer, pkt); err != nil {
			return err
		}
	}
	return nil
}

// splitAvcFile 裸流中没有时间戳，按帧率生成，pts与dts相同
func splitAvcFile(b []byte, frameRate float64) []base.AvPacket {
	aus := avc.SplitAccessUnits(avc.SplitNaluAnnexb(b))
	ret := make([]base.AvPacket, 0, len(aus))
	for i, au := range aus {
		ts := int64(float64(i) * 1000 / frameRate)
		ret = append(ret, base.AvPacket{
			PayloadType: base.AvPacketPtAvc,
			Timestamp:   ts,
			Pts:         ts,
			Payload:     avc.JoinNaluAnnexb(au),
		})
	}
	return ret
}

func splitAacFile(b []byte) ([]base.AvPacket, error) {
	frames, err := aac.SplitAdtsFrames(b)
	ret := make([]base.AvPacket, 0, len(frames))
	var samples int64
	for _, frame := range frames {
		h, _ := aac.ParseAdtsHeader(frame)
		freq, ferr := aac.SamplingFrequency(h.SamplingFrequencyIndex)
		if ferr != nil {
			return ret, ferr
		}
		ts := samples * 1000 / int64(freq)
		ret = append(ret, base.AvPacket{
			PayloadType: base.AvPacketPtAac,
			Timestamp:   ts,
			Pts:         ts,
			Payload:     frame,
		})
		samples += aac.SamplesPerFrame
	}
	return ret, err
}

func parseFlag() (confFile, tsFileName, avcFileName, aacFileName, flvFileName string) {
	binInfoFlag := flag.Bool("version", false, "show bin info")
	c := flag.String("c", "", "specify conf file")
	t := flag.String("t", "", "specify ts file")
	v := flag.String("v", "", "specify es h264 file")
	a := flag.String("a", "", "specify es aac file")
	o := flag.String("o", "", "specify output flv file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		os.Exit(0)
	}
	if *o == "" || (*t == "" && *v == "" && *a == "") || (*t != "" && (*v != "" || *a != "")) {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/es2flv -v /tmp/in.h264 -a /tmp/in.aac -o /tmp/out.flv
  ./bin/es2flv -t /tmp/in.ts -o /tmp/out.flv
`)
		os.Exit(1)
	}
	if *t != "" && !strings.HasSuffix(strings.ToLower(*t), ".ts") {
		log.Warnf("input file suffix is not .ts, try to demux it anyway. file=%s", *t)
	}
	return *c, *t, *v, *a, *o
}

func loadConf(confFile string) *Config {
	config, err := LoadConf(confFile)
	if err != nil {
		log.Errorf("load conf failed. file=%s err=%+v", confFile, err)
		os.Exit(1)
	}
	log.Infof("load conf succ. file=%s content=%+v", confFile, config)
	return config
}

func initLog(opt log.Option) {
	if err := log.Init(func(option *log.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		os.Exit(1)
	}
	log.Info("initial log succ.")
}
