package searchgateway

import (
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// payload field names, matching the index schema fields referenced in §6.
const (
	fieldParentID        = "parent_id"
	fieldStoragePath     = "metadata_storage_path"
	fieldStorageName     = "metadata_storage_name"
	fieldLastModified    = "metadata_storage_last_modified"
	fieldSecurityUsers   = "metadata_security_user_ids"
	fieldSecurityGroups  = "metadata_security_group_ids"
	fieldSource          = "source"
	fieldChunkID         = "chunk_id"
	fieldContent         = "content"
	fieldCaptionVector   = "captionVector"
	fieldTitle           = "title"
	fieldPage            = "page"
	fieldOffset          = "offset"
	fieldLength          = "length"
	fieldURL             = "url"
	fieldCategory        = "category"
	fieldSummary         = "summary"
	fieldRelatedImages   = "relatedImages"
	fieldRelatedFiles    = "relatedFiles"
	fieldImageCaptions   = "imageCaptions"
	fieldFilepath        = "filepath"
)

const listSep = "\x1f" // unit separator, unlikely in natural text

func toPoint(d Document) *qdrant.PointStruct {
	m := map[string]any{
		payloadIDField:      d.ID,
		fieldParentID:       d.ParentID,
		fieldStoragePath:    d.MetadataStoragePath,
		fieldStorageName:    d.MetadataStorageName,
		fieldLastModified:   d.MetadataStorageLastModified.UTC().Format(time.RFC3339Nano),
		fieldSecurityUsers:  strings.Join(d.MetadataSecurityUserIDs, listSep),
		fieldSecurityGroups: strings.Join(d.MetadataSecurityGroupIDs, listSep),
		fieldSource:         d.Source,
		fieldChunkID:        int64(d.ChunkID),
		fieldContent:        d.Content,
		fieldCaptionVector:  joinFloats(d.CaptionVector),
		fieldTitle:          d.Title,
		fieldPage:           int64(d.Page),
		fieldOffset:         int64(d.Offset),
		fieldLength:         int64(d.Length),
		fieldURL:            d.URL,
		fieldCategory:       d.Category,
		fieldSummary:        d.Summary,
		fieldRelatedImages:  strings.Join(d.RelatedImages, listSep),
		fieldRelatedFiles:   strings.Join(d.RelatedFiles, listSep),
		fieldImageCaptions:  d.ImageCaptions,
		fieldFilepath:       d.Filepath,
	}
	vec := make([]float32, len(d.ContentVector))
	copy(vec, d.ContentVector)
	return &qdrant.PointStruct{
		Id:      pointID(d.ID),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(m),
	}
}

func fromRetrievedPoint(fallbackKey string, p *qdrant.RetrievedPoint) Document {
	payload := p.GetPayload()
	get := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getInt := func(k string) int {
		if v, ok := payload[k]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	id := get(payloadIDField)
	if id == "" {
		if p.GetId() != nil && p.GetId().GetUuid() != "" {
			id = p.GetId().GetUuid()
		} else {
			id = fallbackKey
		}
	}
	lastMod, _ := time.Parse(time.RFC3339Nano, get(fieldLastModified))
	var contentVec []float32
	if vecs := p.GetVectors(); vecs != nil {
		if dense := vecs.GetVector(); dense != nil {
			contentVec = dense.GetData()
		}
	}
	return Document{
		ID:                          id,
		ParentID:                    get(fieldParentID),
		MetadataStoragePath:         get(fieldStoragePath),
		MetadataStorageName:         get(fieldStorageName),
		MetadataStorageLastModified: lastMod,
		MetadataSecurityUserIDs:     splitFilled(get(fieldSecurityUsers)),
		MetadataSecurityGroupIDs:    splitFilled(get(fieldSecurityGroups)),
		Source:                      get(fieldSource),
		ChunkID:                     getInt(fieldChunkID),
		Content:                     get(fieldContent),
		ContentVector:               contentVec,
		CaptionVector:               parseFloats(get(fieldCaptionVector)),
		Title:                       get(fieldTitle),
		Page:                        getInt(fieldPage),
		Offset:                      getInt(fieldOffset),
		Length:                      getInt(fieldLength),
		URL:                         get(fieldURL),
		Category:                    get(fieldCategory),
		Summary:                     get(fieldSummary),
		RelatedImages:               splitFilled(get(fieldRelatedImages)),
		RelatedFiles:                splitFilled(get(fieldRelatedFiles)),
		ImageCaptions:               get(fieldImageCaptions),
		Filepath:                    get(fieldFilepath),
	}
}

func toQdrantFilter(f Filter) *qdrant.Filter {
	if len(f.Eq) == 0 && len(f.Ne) == 0 {
		return nil
	}
	qf := &qdrant.Filter{}
	for k, v := range f.Eq {
		qf.Must = append(qf.Must, qdrant.NewMatch(k, v))
	}
	for k, v := range f.Ne {
		qf.MustNot = append(qf.MustNot, qdrant.NewMatch(k, v))
	}
	return qf
}

func splitFilled(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func joinFloats(fs []float32) string {
	if len(fs) == 0 {
		return ""
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return strings.Join(parts, listSep)
}

func parseFloats(s string) []float32 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSep)
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			continue
		}
		out = append(out, float32(f))
	}
	return out
}
