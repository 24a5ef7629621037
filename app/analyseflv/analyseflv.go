// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/avc"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/flv"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazabytes"
	log "github.com/q191201771/naza/pkg/nazalog"
)

// 分析flv文件，打印header、metadata、音视频头以及每个tag的概要信息
//
// Usage:
// ./bin/analyseflv -i /tmp/in.flv
// ./bin/analyseflv -i /tmp/in.flv -t  # 打印每个tag

type stat struct {
	audioCount int
	videoCount int
	keyCount   int
	lastTs     map[uint8]uint32
	tsReverse  int
}

func main() {
	filename, tagFlag := parseFlag()
	_ = log.Init(func(option *log.Option) {
		option.Level = log.LevelInfo
		option.ShortFileFlag = true
		option.AssertBehavior = log.AssertFatal
	})

	var ffr flv.FileReader
	err := ffr.Open(filename)
	log.Assert(nil, err)
	defer ffr.Dispose()

	header, err := ffr.ReadFlvHeader()
	log.Assert(nil, err)
	hasAudio, hasVideo, _ := flv.ParseFlvHeader(header)
	log.Infof("flv header. version=%d, audio=%t, video=%t", header[3], hasAudio, hasVideo)

	s := stat{lastTs: make(map[uint8]uint32)}
	for {
		tag, err := ffr.ReadTag()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Errorf("read tag failed. err=%+v", err)
			break
		}
		analyseTag(&s, &tag, tagFlag)
	}
	log.Infof("EOF. audio=%d, video=%d, key=%d, timestamp reverse=%d", s.audioCount, s.videoCount, s.keyCount, s.tsReverse)
}

func analyseTag(s *stat, tag *flv.Tag, tagFlag bool) {
	if tagFlag {
		log.Infof("tag. type=%d, ts=%d, size=%d, payload=%s",
			tag.Header.Type, tag.Header.Timestamp, tag.Header.DataSize, hex.EncodeToString(nazabytes.Prefix(tag.Payload(), 16)))
	}
	if last, ok := s.lastTs[tag.Header.Type]; ok && tag.Header.Timestamp < last {
		log.Warnf("timestamp reverse. type=%d, last=%d, curr=%d", tag.Header.Type, last, tag.Header.Timestamp)
		s.tsReverse++
	}
	s.lastTs[tag.Header.Type] = tag.Header.Timestamp

	switch tag.Header.Type {
	case base.FlvTagTypeMetadata:
		analyseMetadata(tag)
	case base.FlvTagTypeAudio:
		s.audioCount++
		if tag.IsAacSeqHeader() {
			analyseAacSeqHeader(tag)
		}
	case base.FlvTagTypeVideo:
		s.videoCount++
		switch {
		case tag.IsAvcKeySeqHeader():
			analyseAvcSeqHeader(tag)
		case tag.IsAvcKeyNalu():
			s.keyCount++
			if tagFlag {
				analyseNalus(tag)
			}
		case tag.IsAvcEos():
			log.Infof("avc end of sequence. ts=%d", tag.Header.Timestamp)
		}
	}
}

func analyseMetadata(tag *flv.Tag) {
	kv, err := flv.ParseMetadataRaw(tag.Payload())
	if err != nil {
		log.Errorf("parse metadata failed. err=%+v", err)
		return
	}
	log.Infof("metadata. %+v", kv)
}

func analyseAacSeqHeader(tag *flv.Tag) {
	payload := tag.Payload()
	var shCtx aac.SequenceHeaderContext
	if err := shCtx.Unpack(payload); err != nil {
		log.Errorf("parse aac seq header failed. err=%+v", err)
		return
	}
	ascCtx, err := aac.NewAscContext(payload[2:])
	if err != nil {
		log.Errorf("parse asc failed. err=%+v", err)
		return
	}
	freq, _ := ascCtx.GetSamplingFrequency()
	log.Infof("aac seq header. sh=%+v, asc=%+v, sampling frequency=%d", shCtx, *ascCtx, freq)
}

func analyseAvcSeqHeader(tag *flv.Tag) {
	spsNalu, ppsNalu, err := avc.ParseSeqHeader(tag.Payload())
	if err != nil {
		log.Errorf("parse avc seq header failed. err=%+v", err)
		return
	}
	sps, err := avc.ParseSps(spsNalu)
	if err != nil {
		log.Errorf("parse sps failed. err=%+v", err)
		return
	}
	log.Infof("avc seq header. profile=%d, level=%d, width=%d, height=%d, sps=%s, pps=%s",
		sps.ProfileIdc, sps.LevelIdc, sps.Width(), sps.Height(), hex.EncodeToString(spsNalu), hex.EncodeToString(ppsNalu))
}

func analyseNalus(tag *flv.Tag) {
	payload := tag.Payload()
	if len(payload) < 5 {
		return
	}
	var types []string
	err := avc.IterateNaluAvcc(payload[5:], func(nal []byte) {
		if len(nal) != 0 {
			types = append(types, avc.ParseNaluTypeReadable(nal[0]))
		}
	})
	if err != nil {
		log.Warnf("iterate nalu failed. err=%+v", err)
	}
	log.Infof("    nalus. cts=%d, types=%v", tag.CompositionTime(), types)
}

func parseFlag() (string, bool) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	i := flag.String("i", "", "specify flv file")
	t := flag.Bool("t", false, "print every tag")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		os.Exit(0)
	}
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/analyseflv -i /tmp/in.flv
`)
		os.Exit(1)
	}
	return *i, *t
}
