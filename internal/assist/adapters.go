package assist

import (
	"context"

	"github.com/varga/laguz/internal/pageservice"
)

// searchLimit caps how many findings a single assist search requests.
const searchLimit = 25

// IndexSearcher adapts the page service's index-backed search to the
// Searcher collaborator.
type IndexSearcher struct {
	Pages *pageservice.Service
}

func (a IndexSearcher) Search(ctx context.Context, term string) (SearchData, error) {
	res, err := a.Pages.Search(ctx, term, searchLimit)
	if err != nil {
		return SearchData{}, err
	}
	data := SearchData{
		Pages:    make([]Finding, 0, len(res.Pages)),
		Journals: make([]Finding, 0, len(res.Journals)),
	}
	for _, f := range res.Pages {
		data.Pages = append(data.Pages, Finding{
			PageName:    f.PageName,
			BlockNumber: f.BlockNumber,
			TextLine:    f.TextLine,
		})
	}
	for _, f := range res.Journals {
		data.Journals = append(data.Journals, Finding{
			PageName:    f.PageName,
			BlockNumber: f.BlockNumber,
			TextLine:    f.TextLine,
			Journal:     true,
		})
	}
	return data, nil
}

// ServiceMeta adapts the page service's meta info to the MetaProvider
// collaborator.
type ServiceMeta struct {
	Pages *pageservice.Service
}

func (a ServiceMeta) DomainInfo(ctx context.Context) (DomainInfo, error) {
	meta, err := a.Pages.Meta(ctx)
	if err != nil {
		return DomainInfo{}, err
	}
	return DomainInfo{Tags: meta.Tags, Media: meta.Media}, nil
}
