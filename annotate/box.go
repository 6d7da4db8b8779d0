package annotate

import (
	"bytes"
	"fmt"
	"html/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"aside/config"
	"aside/dom"
)

// boxValues is a struct that holds variables we make available for box
// template expansion.
type boxValues struct {
	ID        string
	Speaker   string
	AvatarURL string
	// Inner is markup captured from the tree being edited, reinserted
	// verbatim.
	Inner template.HTML
}

// One template per visual variant, names match config.BoxStyle values.
const boxTemplates = `
{{- define "classic" -}}
<div class="aside-box aside-box--classic" data-aside-box="" data-aside-id="{{.ID}}">
<div class="aside-box__header">
{{- if .AvatarURL}}<img class="aside-box__avatar" src="{{.AvatarURL}}" alt="{{.Speaker}}">{{end -}}
<span class="aside-box__speaker">{{.Speaker}}</span></div>
<div class="aside-box__body">{{.Inner}}</div>
</div>
{{- end -}}

{{- define "minimal" -}}
<div class="aside-box aside-box--minimal" data-aside-box="" data-aside-id="{{.ID}}">
<span class="aside-box__speaker">{{.Speaker}}:</span> {{.Inner}}
</div>
{{- end -}}

{{- define "script" -}}
<div class="aside-box aside-box--script" data-aside-box="" data-aside-id="{{.ID}}">
{{- if .AvatarURL}}<img class="aside-box__avatar" src="{{.AvatarURL}}" alt="{{.Speaker}}">{{end}}
<span class="aside-box__speaker">{{upper .Speaker}}</span>
<div class="aside-box__body"><em>{{.Inner}}</em></div>
</div>
{{- end -}}
`

// BoxBuilder renders annotation boxes in one of the configured visual
// variants. Pure presentation - nothing in matching or scheduling depends
// on what it produces beyond the marker attributes.
type BoxBuilder struct {
	tmpl  *template.Template
	style config.BoxStyle
}

func NewBoxBuilder(style config.BoxStyle) (*BoxBuilder, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New("boxes").Funcs(template.FuncMap(funcMap)).Parse(boxTemplates)
	if err != nil {
		return nil, fmt.Errorf("unable to parse box templates: %w", err)
	}
	if tmpl.Lookup(style.String()) == nil {
		return nil, fmt.Errorf("no box template for style %s", style)
	}
	return &BoxBuilder{tmpl: tmpl, style: style}, nil
}

// Build renders a new annotation element carrying a unique identity.
// innerMarkup is trusted markup previously extracted from the tree.
func (b *BoxBuilder) Build(speaker, avatarURL, innerMarkup string) (*html.Node, error) {
	values := &boxValues{
		ID:        uuid.New().String(),
		Speaker:   speaker,
		AvatarURL: avatarURL,
		Inner:     template.HTML(innerMarkup),
	}

	buf := new(bytes.Buffer)
	if err := b.tmpl.ExecuteTemplate(buf, b.style.String(), values); err != nil {
		return nil, fmt.Errorf("unable to render %s box: %w", b.style, err)
	}

	nodes, err := dom.ParseFragment(buf.String())
	if err != nil {
		return nil, fmt.Errorf("unable to parse rendered box: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("rendered %s box has no element node", b.style)
}
