package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
)

// HumanLayout is the layout of every human-readable timestamp in a sidecar
const HumanLayout = "2006-01-02 15:04:05"

// PhotoMetadata is the sidecar written next to each original
type PhotoMetadata struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Dates       Dates           `json:"dates"`
	Visibility  Visibility      `json:"visibility"`
	Tags        []string        `json:"tags"`
	Comments    []CommentRecord `json:"comments"`
	Location    Location        `json:"location"`
}

// Dates keeps the raw posted epoch next to derived local timestamps
type Dates struct {
	PostedUnix  string `json:"posted_unix"`
	PostedHuman string `json:"posted_human"`
	Taken       string `json:"taken"`
	LastUpdate  string `json:"last_update"`
}

// Visibility flags are "0" or "1"
type Visibility struct {
	IsPublic string `json:"is_public"`
	IsFriend string `json:"is_friend"`
	IsFamily string `json:"is_family"`
}

// Location coordinates are null when the photo is not geotagged
type Location struct {
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
}

// CommentRecord is one comment in posting order
type CommentRecord struct {
	Author    string `json:"author"`
	CreatedAt string `json:"date"`
	Text      string `json:"text"`
}

// API is the subset of the Flickr client the assembler calls
type API interface {
	GetInfo(ctx context.Context, photoID string) (*flickr.PhotoInfo, error)
	GetComments(ctx context.Context, photoID string) ([]flickr.Comment, error)
}

// Assembler builds PhotoMetadata from a detail call and a comment-list call
type Assembler struct {
	api    API
	loc    *time.Location
	logger logger.Logger
}

// NewAssembler creates an Assembler formatting timestamps in loc (time.Local when nil)
func NewAssembler(api API, loc *time.Location, log logger.Logger) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Assembler{api: api, loc: loc, logger: log}
}

// Assemble fetches and normalizes the metadata of one photo.
// Any failure aborts the whole record; no partial metadata is returned.
func (a *Assembler) Assemble(ctx context.Context, photoID string) (*PhotoMetadata, error) {
	info, err := a.api.GetInfo(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get info for %s: %w", photoID, err)
	}

	comments, err := a.api.GetComments(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get comments for %s: %w", photoID, err)
	}

	meta, err := a.build(photoID, info, comments)
	if err != nil {
		a.logger.WarnWithFields("metadata assembly failed", map[string]interface{}{
			"item_id": photoID,
			"error":   err.Error(),
		})
		return nil, err
	}
	return meta, nil
}

func (a *Assembler) build(photoID string, info *flickr.PhotoInfo, comments []flickr.Comment) (*PhotoMetadata, error) {
	if info.Dates == nil {
		return nil, fmt.Errorf("photo %s: response has no dates", photoID)
	}
	if info.Visibility == nil {
		return nil, fmt.Errorf("photo %s: response has no visibility", photoID)
	}
	if info.Tags == nil {
		return nil, fmt.Errorf("photo %s: response has no tags", photoID)
	}

	posted, err := FormatEpoch(info.Dates.Posted.String(), a.loc)
	if err != nil {
		return nil, fmt.Errorf("photo %s posted date: %w", photoID, err)
	}
	lastUpdate, err := FormatEpoch(info.Dates.LastUpdate.String(), a.loc)
	if err != nil {
		return nil, fmt.Errorf("photo %s last update: %w", photoID, err)
	}

	meta := &PhotoMetadata{
		ID:          photoID,
		Title:       contentOf(info.Title),
		Description: contentOf(info.Description),
		Dates: Dates{
			PostedUnix:  info.Dates.Posted.String(),
			PostedHuman: posted,
			Taken:       info.Dates.Taken.String(),
			LastUpdate:  lastUpdate,
		},
		Visibility: Visibility{
			IsPublic: info.Visibility.IsPublic.String(),
			IsFriend: info.Visibility.IsFriend.String(),
			IsFamily: info.Visibility.IsFamily.String(),
		},
		Tags:     make([]string, 0, len(info.Tags.Tag)),
		Comments: make([]CommentRecord, 0, len(comments)),
	}

	for _, tag := range info.Tags.Tag {
		meta.Tags = append(meta.Tags, tag.Content)
	}

	for i, c := range comments {
		record, err := a.comment(c)
		if err != nil {
			return nil, fmt.Errorf("photo %s comment %d: %w", photoID, i, err)
		}
		meta.Comments = append(meta.Comments, record)
	}

	if info.Location != nil {
		lat := info.Location.Latitude.String()
		lon := info.Location.Longitude.String()
		meta.Location = Location{Latitude: &lat, Longitude: &lon}
	}

	return meta, nil
}

func (a *Assembler) comment(c flickr.Comment) (CommentRecord, error) {
	created, err := FormatEpoch(c.DateCreate.String(), a.loc)
	if err != nil {
		return CommentRecord{}, err
	}

	author := c.RealName.String()
	if author == "" {
		author = c.AuthorName.String()
	}

	return CommentRecord{
		Author:    author,
		CreatedAt: created,
		Text:      c.Content,
	}, nil
}

func contentOf(c *flickr.Content) string {
	if c == nil {
		return ""
	}
	return c.Content
}

// FormatEpoch renders a unix-epoch string as a local timestamp
func FormatEpoch(epoch string, loc *time.Location) (string, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(epoch), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid epoch %q: %w", epoch, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(secs, 0).In(loc).Format(HumanLayout), nil
}

// Encode renders meta as UTF-8 JSON indented with four spaces
func Encode(meta *PhotoMetadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(meta); err != nil {
		return nil, fmt.Errorf("encode metadata %s: %w", meta.ID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a sidecar written by Encode
func Decode(data []byte) (*PhotoMetadata, error) {
	var meta PhotoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}
