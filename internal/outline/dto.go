package outline

import "fmt"

// BlockContentDTO is the wire form of BlockContent.
type BlockContentDTO struct {
	OriginalText     string `json:"originalText"`
	PreparedMarkdown string `json:"preparedMarkdown"`
}

// ReferenceDTO is the wire form of Reference.
type ReferenceDTO struct {
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	BlockNumber int    `json:"blockNumber"`
}

// ReferencedBlockContentDTO is the wire form of ReferencedBlockContent.
type ReferencedBlockContentDTO struct {
	Content   BlockContentDTO `json:"content"`
	Reference ReferenceDTO    `json:"reference"`
}

// BlockDTO is the wire form of a block. Collapsed is absent in payloads
// written by older versions and defaults to false.
type BlockDTO struct {
	Content           BlockContentDTO             `json:"content"`
	Indentation       int                         `json:"indentation"`
	Collapsed         bool                        `json:"collapsed,omitempty"`
	HasDynamicContent bool                        `json:"hasDynamicContent"`
	ReferencedContent []ReferencedBlockContentDTO `json:"referencedContent"`
}

// PageDTO is the wire form of a full page.
type PageDTO struct {
	Blocks      []BlockDTO `json:"blocks"`
	IsFavourite bool       `json:"isFavourite"`
	Title       string     `json:"title,omitempty"`
}

// FlatBlockDTO is the persistence wire form of one block: raw markdown plus
// indentation, addressed by document-order position.
type FlatBlockDTO struct {
	Markdown    string `json:"markdown"`
	Indentation int    `json:"indentation"`
}

// FromBlockDTO materializes a block from its wire form under the given id.
func FromBlockDTO(dto BlockDTO, id string) (*Block, error) {
	b, err := NewBlock(id, BlockContent{
		OriginalText:     dto.Content.OriginalText,
		PreparedMarkdown: dto.Content.PreparedMarkdown,
	}, dto.Indentation)
	if err != nil {
		return nil, err
	}
	b.Collapsed = dto.Collapsed
	b.HasDynamicContent = dto.HasDynamicContent
	for _, rc := range dto.ReferencedContent {
		b.ReferencedContent = append(b.ReferencedContent, ReferencedBlockContent{
			Content: BlockContent{
				OriginalText:     rc.Content.OriginalText,
				PreparedMarkdown: rc.Content.PreparedMarkdown,
			},
			Reference: Reference{
				SourcePageID:   rc.Reference.FileID,
				SourcePageName: rc.Reference.FileName,
				BlockNumber:    rc.Reference.BlockNumber,
			},
		})
	}
	return b, nil
}

// FromPageDTO materializes a page. Block ids are assigned from the page name,
// the 1-based running number, and one random suffix per load, so a reload
// never reuses ids from the previous materialization.
func FromPageDTO(dto PageDTO, name, pageID string) (*Page, error) {
	suffix := newIDSuffix()
	blocks := make([]*Block, 0, len(dto.Blocks))
	for i, bd := range dto.Blocks {
		b, err := FromBlockDTO(bd, fmt.Sprintf("%s/%d_%s", name, i+1, suffix))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return &Page{
		Name:        name,
		PageID:      pageID,
		Title:       dto.Title,
		IsFavourite: dto.IsFavourite,
		Blocks:      blocks,
	}, nil
}

// ToBlockDTO converts a block back to its wire form.
func ToBlockDTO(b *Block) BlockDTO {
	dto := BlockDTO{
		Content: BlockContentDTO{
			OriginalText:     b.Content.OriginalText,
			PreparedMarkdown: b.Content.PreparedMarkdown,
		},
		Indentation:       b.Indentation,
		Collapsed:         b.Collapsed,
		HasDynamicContent: b.HasDynamicContent,
		ReferencedContent: []ReferencedBlockContentDTO{},
	}
	for _, rc := range b.ReferencedContent {
		dto.ReferencedContent = append(dto.ReferencedContent, ReferencedBlockContentDTO{
			Content: BlockContentDTO{
				OriginalText:     rc.Content.OriginalText,
				PreparedMarkdown: rc.Content.PreparedMarkdown,
			},
			Reference: ReferenceDTO{
				FileID:      rc.Reference.SourcePageID,
				FileName:    rc.Reference.SourcePageName,
				BlockNumber: rc.Reference.BlockNumber,
			},
		})
	}
	return dto
}

// Flatten serializes blocks to {markdown, indentation} pairs in document
// order, the only shape the persistence collaborator accepts for page saves.
func Flatten(blocks []*Block) []FlatBlockDTO {
	out := make([]FlatBlockDTO, len(blocks))
	for i, b := range blocks {
		out[i] = FlatBlockDTO{Markdown: b.Content.OriginalText, Indentation: b.Indentation}
	}
	return out
}
