// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"io"
	"os"

	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/avc"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/flv"
	log "github.com/q191201771/naza/pkg/nazalog"
)

// 将flv文件中的音视频分离成h264、aac裸流文件，也即 es2flv 的反向操作
//
// Usage:
// ./bin/flvfile2es -i /tmp/in.flv -a /tmp/out.aac -v /tmp/out.h264

// esWriter 将flv tag的payload转换成裸流
type esWriter struct {
	aw     io.Writer
	vw     io.Writer
	ascCtx *aac.AscContext
}

func (w *esWriter) writeTag(tag *flv.Tag) error {
	payload := tag.Payload()
	switch {
	case tag.IsAacSeqHeader():
		ascCtx, err := aac.NewAscContext(payload[2:])
		if err != nil {
			return err
		}
		w.ascCtx = ascCtx
	case tag.IsAacRaw():
		if w.ascCtx == nil {
			log.Warnf("aac raw before seq header, drop it. ts=%d", tag.Header.Timestamp)
			return nil
		}
		raw := payload[2:]
		header, err := w.ascCtx.PackAdtsHeader(len(raw))
		if err != nil {
			return err
		}
		if _, err = w.aw.Write(header); err != nil {
			return err
		}
		_, err = w.aw.Write(raw)
		return err
	case tag.IsAvcKeySeqHeader():
		sps, pps, err := avc.ParseSeqHeader(payload)
		if err != nil {
			return err
		}
		_, err = w.vw.Write(avc.JoinNaluAnnexb([][]byte{sps, pps}))
		return err
	case tag.IsAvcKeyNalu(), tag.IsAvcInterNalu():
		if len(payload) < 5 {
			return base.NewErrShortBuffer(5, len(payload), "avc nalu tag")
		}
		var nals [][]byte
		if err := avc.IterateNaluAvcc(payload[5:], func(nal []byte) {
			nals = append(nals, nal)
		}); err != nil {
			return err
		}
		_, err := w.vw.Write(avc.JoinNaluAnnexb(nals))
		return err
	}
	return nil
}

func main() {
	var err error
	flvFileName, aacFileName, avcFileName := parseFlag()
	_ = log.Init(func(option *log.Option) {
		option.AssertBehavior = log.AssertFatal
	})

	var ffr flv.FileReader
	err = ffr.Open(flvFileName)
	log.Assert(nil, err)
	defer ffr.Dispose()
	log.Infof("open flv file succ.")

	afp, err := os.Create(aacFileName)
	log.Assert(nil, err)
	defer afp.Close()
	log.Infof("open es aac file succ.")

	vfp, err := os.Create(avcFileName)
	log.Assert(nil, err)
	defer vfp.Close()
	log.Infof("open es h264 file succ.")

	_, err = ffr.ReadFlvHeader()
	log.Assert(nil, err)

	w := esWriter{aw: afp, vw: vfp}
	for {
		tag, err := ffr.ReadTag()
		if err == io.EOF {
			log.Infof("EOF.")
			break
		}
		log.Assert(nil, err)

		if err = w.writeTag(&tag); err != nil {
			log.Warnf("write tag failed. header=%+v, err=%+v", tag.Header, err)
		}
	}
}

func parseFlag() (string, string, string) {
	flv := flag.String("i", "", "specify flv file")
	aac := flag.String("a", "", "specify es aac file")
	avc := flag.String("v", "", "specify es h264 file")
	flag.Parse()
	if *flv == "" || *avc == "" || *aac == "" {
		flag.Usage()
		os.Exit(1)
	}
	return *flv, *aac, *avc
}
