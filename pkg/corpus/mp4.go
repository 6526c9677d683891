package corpus

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ExtractAnnexB pulls the H.264 elementary stream out of an MP4 container
// as one Annex B byte stream. SPS and PPS from the avcC box are prepended
// to every keyframe, so the stream is decodable from its first sync sample.
func ExtractAnnexB(data []byte) ([]byte, error) {
	reader := bytes.NewReader(data)
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}
	if mp4File.IsFragmented() {
		return extractFragmented(mp4File)
	}
	return extractProgressive(mp4File, reader)
}

func paramSets(avcC *mp4.AvcCBox) []byte {
	var spsPPS []byte
	if avcC == nil {
		return nil
	}
	for _, sps := range avcC.SPSnalus {
		spsPPS = append(spsPPS, 0, 0, 0, 1)
		spsPPS = append(spsPPS, sps...)
	}
	for _, pps := range avcC.PPSnalus {
		spsPPS = append(spsPPS, 0, 0, 0, 1)
		spsPPS = append(spsPPS, pps...)
	}
	return spsPPS
}

func videoTrack(moov *mp4.MoovBox) (*mp4.TrakBox, *mp4.AvcCBox) {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		var avcC *mp4.AvcCBox
		if trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil {
			for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
				if avc1, ok := child.(*mp4.VisualSampleEntryBox); ok {
					avcC = avc1.AvcC
				}
			}
		}
		return trak, avcC
	}
	return nil, nil
}

func extractProgressive(mp4File *mp4.File, reader io.ReadSeeker) ([]byte, error) {
	if mp4File.Moov == nil {
		return nil, fmt.Errorf("no moov box found")
	}
	trak, avcC := videoTrack(mp4File.Moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	spsPPS := paramSets(avcC)

	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("no stsz box found")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	var stream []byte
	for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
		sample, err := sampleData(stbl, reader, nr)
		if err != nil {
			return nil, fmt.Errorf("read sample %d: %w", nr, err)
		}
		if syncSamples[nr] || len(syncSamples) == 0 {
			stream = append(stream, spsPPS...)
		}
		stream = append(stream, avccToAnnexB(sample)...)
	}
	return stream, nil
}

func extractFragmented(mp4File *mp4.File) ([]byte, error) {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return nil, fmt.Errorf("no init moov box found")
	}
	trak, avcC := videoTrack(mp4File.Init.Moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	trackID := trak.Tkhd.TrackID
	spsPPS := paramSets(avcC)

	var trex *mp4.TrexBox
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var stream []byte
	first := true
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}
				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}
				for _, sample := range samples {
					if first || sample.Flags == mp4.SyncSampleFlags {
						stream = append(stream, spsPPS...)
					}
					first = false
					stream = append(stream, avccToAnnexB(sample.Data)...)
				}
			}
		}
	}
	return stream, nil
}

// sampleData reads one sample from a progressive MP4 through its chunk
// offset tables.
func sampleData(stbl *mp4.StblBox, reader io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}
	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, stbl.Stsz.GetSampleSize(int(sampleNr)))
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// avccToAnnexB converts length-prefixed NAL units to start-code form.
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0
	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4
		if offset+naluLen > len(data) {
			break
		}
		result = append(result, 0, 0, 0, 1)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}
	return result
}
