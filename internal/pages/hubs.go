package pages

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

const (
	hubCreatePattern = "**/api/hubs/create"
	hubDetailPattern = "**/api/hubs/*?include=short_outline"
	outlinesPattern  = "**/api/outlines"
)

// HubType selects the kind of hub in the create wizard.
type HubType string

const (
	OutlineHub HubType = "outline"
	ValueHub   HubType = "value"
)

// FieldType is the shape of a hub field.
type FieldType string

const (
	SingleField FieldType = "single"
	GroupField  FieldType = "group"
	ListField   FieldType = "list"
)

func hubPattern(hubID string) string {
	return "**/api/hubs/" + hubID
}

func hubRefreshPattern(hubID string) string {
	return "**/api/hubs/" + hubID + "?include=short_outline"
}

func fieldsPattern(hubID string) string {
	return "**/api/hubs/" + hubID + "/abstract-fields"
}

func fieldPattern(hubID, fieldID string) string {
	return fieldsPattern(hubID) + "/" + fieldID
}

// DocumentsInsightsPage lists processed documents and leads to hubs.
type DocumentsInsightsPage struct {
	*Studio
	Sidebar

	Title        playwright.Locator
	HubsButton   playwright.Locator
	ProcessedTab playwright.Locator
	PendingTab   playwright.Locator
	QueuedTab    playwright.Locator
	RejectedTab  playwright.Locator
	Table        playwright.Locator
}

// NewDocumentsInsightsPage binds the Document Insights locators.
func NewDocumentsInsightsPage(s *Studio) *DocumentsInsightsPage {
	tab := func(name string) playwright.Locator {
		return s.Page.GetByRole(*playwright.AriaRoleTab, playwright.PageGetByRoleOptions{Name: name})
	}
	return &DocumentsInsightsPage{
		Studio:       s,
		Sidebar:      newSidebar(s),
		Title:        s.Page.Locator(`div[class="page-content"] span[class="name"]`),
		HubsButton:   s.Button("Hubs"),
		ProcessedTab: tab("Processed"),
		PendingTab:   tab("Pending"),
		QueuedTab:    tab("Queued"),
		RejectedTab:  tab("Rejected"),
		Table:        s.Page.Locator(".page-content table"),
	}
}

// ToHubs opens the hub list and waits for it to load.
func (p *DocumentsInsightsPage) ToHubs() (*HubsPage, error) {
	if _, err := p.Expect(click(p.HubsButton), hubListPattern); err != nil {
		return nil, err
	}
	return NewHubsPage(p.Studio), nil
}

// HubsPage lists hubs and creates new ones.
type HubsPage struct {
	*Studio
	Sidebar
	Popups

	Title           playwright.Locator
	Description     playwright.Locator
	CreateHubButton playwright.Locator
	CreateButton    playwright.Locator
	HubNameInput    playwright.Locator
	Rows            playwright.Locator
}

// NewHubsPage binds the hub list locators.
func NewHubsPage(s *Studio) *HubsPage {
	return &HubsPage{
		Studio:          s,
		Sidebar:         newSidebar(s),
		Popups:          newPopups(s),
		Title:           s.Page.Locator(`div[class="page-content"] span[class="name"]`),
		Description:     s.Page.Locator(`div[class="page-content"] p[class="description"]`),
		CreateHubButton: s.Button("Create A Hub"),
		CreateButton:    s.Button("Create"),
		HubNameInput:    s.Page.Locator(`div[tabindex="-1"] input[name="hubName"]`),
		Rows:            s.Page.Locator("tbody tr"),
	}
}

// Row returns the table row of the hub with the given name.
func (p *HubsPage) Row(name string) playwright.Locator {
	return p.Rows.Filter(playwright.LocatorFilterOptions{
		Has: p.Page.Locator(fmt.Sprintf(`td.hub-name:text-is(%q)`, name)),
	})
}

// CreateHub walks the create wizard and returns the hub page together with
// the new hub's id, read from the create response.
func (p *HubsPage) CreateHub(kind HubType, name, description string) (*HubPage, string, error) {
	if err := p.CreateHubButton.Click(); err != nil {
		return nil, "", wrapAction("open create hub", err)
	}
	card := p.OutlineTypeCard
	if kind == ValueHub {
		card = p.ValueTypeCard
	}
	if err := card.Click(); err != nil {
		return nil, "", wrapAction("choose hub type", err)
	}
	if err := p.NextButton.Click(); err != nil {
		return nil, "", wrapAction("next", err)
	}
	if err := p.HubNameInput.Fill(name); err != nil {
		return nil, "", wrapAction("fill hub name", err)
	}
	if description != "" {
		if err := p.HubDescriptionInput.Fill(description); err != nil {
			return nil, "", wrapAction("fill hub description", err)
		}
	}
	responses, err := p.Expect(click(p.CreateButton), hubCreatePattern, hubDetailPattern)
	if err != nil {
		return nil, "", err
	}
	id, err := ResourceID(responses[0])
	if err != nil {
		return nil, "", err
	}
	return NewHubPage(p.Studio, id, kind), id, nil
}

func (p *HubsPage) openRowMenu(name string) error {
	if err := p.Row(name).Locator("button.hub-menu").Click(); err != nil {
		return wrapAction("open hub menu", err)
	}
	return nil
}

func (p *HubsPage) menuPoint(text string) playwright.Locator {
	return p.Page.Locator(".hub-menu__list li").Filter(playwright.LocatorFilterOptions{HasText: text})
}

// Rename renames a hub through its row menu.
func (p *HubsPage) Rename(hubID, name, newName string) error {
	if err := p.openRowMenu(name); err != nil {
		return err
	}
	if err := p.menuPoint("Rename").Click(); err != nil {
		return wrapAction("open rename", err)
	}
	if err := p.RenameInput.Fill(newName); err != nil {
		return wrapAction("fill hub name", err)
	}
	_, err := p.Expect(click(p.SaveButton), hubPattern(hubID))
	return err
}

// Tag adds one key/value tag to a hub through its row menu.
func (p *HubsPage) Tag(hubID, name, key, value string) error {
	if err := p.openRowMenu(name); err != nil {
		return err
	}
	if err := p.menuPoint("Tags").Click(); err != nil {
		return wrapAction("open tags", err)
	}
	if err := p.TagKeyInput.Fill(key); err != nil {
		return wrapAction("fill tag key", err)
	}
	if err := p.TagValueInput.Fill(value); err != nil {
		return wrapAction("fill tag value", err)
	}
	_, err := p.Expect(click(p.SaveButton), hubPattern(hubID)+"/tags")
	return err
}

// OpenDelete opens the delete confirmation of a hub without confirming.
func (p *HubsPage) OpenDelete(name string) error {
	if err := p.openRowMenu(name); err != nil {
		return err
	}
	return wrapAction("open delete", p.menuPoint("Delete").Click())
}

// Delete deletes a hub through its row menu and confirmation popup.
func (p *HubsPage) Delete(hubID, name string) error {
	if err := p.OpenDelete(name); err != nil {
		return err
	}
	_, err := p.Expect(click(p.DeleteButton), hubPattern(hubID))
	return err
}

// HubPage is the field editor of one hub.
type HubPage struct {
	*Studio
	Popups

	HubID string
	Kind  HubType

	Name                playwright.Locator
	AddDataPointsButton playwright.Locator
	AddNewFieldButton   playwright.Locator
	ImportJSONButton    playwright.Locator
	FieldNameInput      playwright.Locator
	GroupRadio          playwright.Locator
	ListRadio           playwright.Locator
	SearchableCheckbox  playwright.Locator
	RequiredCheckbox    playwright.Locator
	NoFieldsText        playwright.Locator
	FieldsTitle         playwright.Locator
	Fields              playwright.Locator
	SingleFieldLabel    playwright.Locator
	GroupFieldLabel     playwright.Locator
	ListFieldLabel      playwright.Locator
	FileInput           playwright.Locator

	TemplateCard     playwright.Locator
	TemplateName     playwright.Locator
	TemplateSwitch   playwright.Locator
	TemplateMenu     playwright.Locator
	TemplateFooter   playwright.Locator
	TemplateRename   playwright.Locator
	TemplateDelete   playwright.Locator
	TemplateNameEdit playwright.Locator
}

// NewHubPage binds the field editor of hubID.
func NewHubPage(s *Studio, hubID string, kind HubType) *HubPage {
	typeLabel := func(text string) playwright.Locator {
		return s.Page.Locator(".field__type").Filter(playwright.LocatorFilterOptions{HasText: text}).First()
	}
	return &HubPage{
		Studio:              s,
		Popups:              newPopups(s),
		HubID:               hubID,
		Kind:                kind,
		Name:                s.Page.Locator(".header .hub__name"),
		AddDataPointsButton: s.Button("Add data points"),
		AddNewFieldButton:   s.Button("Add new field"),
		ImportJSONButton:    s.Button("Import data points in JSON format"),
		FieldNameInput:      s.Page.Locator(`div[tabindex="-1"] input[name="fieldName"]`),
		GroupRadio:          s.Page.Locator(`div[tabindex="-1"] input[name="fieldType"][value="group"]`),
		ListRadio:           s.Page.Locator(`div[tabindex="-1"] input[name="fieldType"][value="list"]`),
		SearchableCheckbox:  s.Page.Locator(`div[tabindex="-1"] input[name="searchable"]`),
		RequiredCheckbox:    s.Page.Locator(`div[tabindex="-1"] input[name="required"]`),
		NoFieldsText:        s.Page.Locator(".fields .fields__empty"),
		FieldsTitle:         s.Page.Locator(".fields .fields__title"),
		Fields:              s.Page.Locator(".fields div.field"),
		SingleFieldLabel:    typeLabel("Single"),
		GroupFieldLabel:     typeLabel("Group"),
		ListFieldLabel:      typeLabel("List"),
		FileInput:           s.Page.Locator(`.outlines input[type="file"]`),
		TemplateCard:        s.Page.Locator(".outline-card"),
		TemplateName:        s.Page.Locator(".outline-card .outline-card__name"),
		TemplateSwitch:      s.Page.Locator(`.outline-card input[role="switch"]`),
		TemplateMenu:        s.Page.Locator(".outline-card button.meatball"),
		TemplateFooter:      s.Page.Locator(".outline-card .outline-card__footer"),
		TemplateRename:      s.Page.Locator(".outline-card__menu li").Filter(playwright.LocatorFilterOptions{HasText: "Rename"}),
		TemplateDelete:      s.Page.Locator(".outline-card__menu li").Filter(playwright.LocatorFilterOptions{HasText: "Delete"}),
		TemplateNameEdit:    s.Page.Locator(`div[tabindex="-1"] input[name="outlineName"]`),
	}
}

// Field returns the field block whose own label is name. Children of the
// field are not matched by their label.
func (p *HubPage) Field(name string) playwright.Locator {
	return p.Page.Locator(fmt.Sprintf(`div.field:has(> .field__head > .field__label:text-is(%q))`, name))
}

func (p *HubPage) fieldButton(name, class string) playwright.Locator {
	return p.Field(name).Locator(":scope > .field__head button." + class)
}

// NestedField returns a field rendered inside the children of parent.
func (p *HubPage) NestedField(parent, name string) playwright.Locator {
	return p.Field(parent).Locator(fmt.Sprintf(`:scope > .field__children .field__label:text-is(%q)`, name))
}

func (p *HubPage) openAddForm() error {
	add := p.AddNewFieldButton
	if p.Kind == ValueHub {
		add = p.AddDataPointsButton
	}
	return wrapAction("open add field", add.Click())
}

func (p *HubPage) fillField(name string, kind FieldType) error {
	if err := p.FieldNameInput.Fill(name); err != nil {
		return wrapAction("fill field name", err)
	}
	switch kind {
	case GroupField:
		return wrapAction("choose group", p.GroupRadio.Check())
	case ListField:
		return wrapAction("choose list", p.ListRadio.Check())
	}
	return nil
}

// save clicks Save and waits for the field request. Group and list fields
// change the hub outline, so the hub is refetched too.
func (p *HubPage) save(target string, kind FieldType) (string, error) {
	patterns := []string{target}
	if kind != SingleField {
		patterns = append(patterns, hubRefreshPattern(p.HubID))
	}
	responses, err := p.Expect(click(p.SaveButton), patterns...)
	if err != nil {
		return "", err
	}
	return ResourceID(responses[0])
}

// AddField creates a top-level field and returns its id.
func (p *HubPage) AddField(name string, kind FieldType) (string, error) {
	if err := p.openAddForm(); err != nil {
		return "", err
	}
	if err := p.fillField(name, kind); err != nil {
		return "", err
	}
	return p.save(fieldsPattern(p.HubID), kind)
}

// AddSearchableField creates a single field with the searchable option on.
func (p *HubPage) AddSearchableField(name string) (string, error) {
	if err := p.openAddForm(); err != nil {
		return "", err
	}
	if err := p.fillField(name, SingleField); err != nil {
		return "", err
	}
	if err := p.SearchableCheckbox.Click(); err != nil {
		return "", wrapAction("toggle searchable", err)
	}
	return p.save(fieldsPattern(p.HubID), SingleField)
}

// AddSubField creates a field nested in the group or list field parent.
func (p *HubPage) AddSubField(parent, parentID, name string, kind FieldType) (string, error) {
	if err := p.fieldButton(parent, "add-sub-field").Click(); err != nil {
		return "", wrapAction("open add sub-field", err)
	}
	if err := p.fillField(name, kind); err != nil {
		return "", err
	}
	responses, err := p.Expect(click(p.SaveButton),
		fieldPattern(p.HubID, parentID)+"/add-sub-field", hubRefreshPattern(p.HubID))
	if err != nil {
		return "", err
	}
	return ResourceID(responses[0])
}

// Expand opens the children of a group or list field.
func (p *HubPage) Expand(name string) error {
	return wrapAction("expand field", p.fieldButton(name, "arrow").Click())
}

// DeleteField deletes a top-level field through its confirmation popup.
func (p *HubPage) DeleteField(name, fieldID string) error {
	if err := p.fieldButton(name, "delete-field").Click(); err != nil {
		return wrapAction("open delete field", err)
	}
	_, err := p.Expect(click(p.DeleteButton), fieldPattern(p.HubID, fieldID))
	return err
}

// EditField opens the edit form of a field.
func (p *HubPage) EditField(name string) error {
	return wrapAction("open edit field", p.fieldButton(name, "edit-field").Click())
}

// ToggleOption flips a checkbox in the open edit form and saves the field.
func (p *HubPage) ToggleOption(checkbox playwright.Locator, fieldID string) error {
	if err := checkbox.Click(); err != nil {
		return wrapAction("toggle option", err)
	}
	_, err := p.Expect(click(p.SaveButton), fieldPattern(p.HubID, fieldID))
	return err
}

// UploadTemplate uploads an outline document and returns the id of the
// template created from it.
func (p *HubPage) UploadTemplate(path string) (string, error) {
	responses, err := p.Expect(func() error {
		return p.FileInput.SetInputFiles(path)
	}, outlinesPattern, "**/api/hubs/smart/"+p.HubID+"/add-outline",
		"**/api/hubs/"+p.HubID+"?include=short_outline,channels")
	if err != nil {
		return "", err
	}
	var added struct {
		Outlines []struct {
			ID string `json:"id"`
		} `json:"outlines"`
	}
	if err := DecodeJSON(responses[1], &added); err != nil {
		return "", err
	}
	if len(added.Outlines) == 0 {
		return "", errs.New(errs.NotFound, "pages: add-outline response lists no outlines")
	}
	return added.Outlines[len(added.Outlines)-1].ID, nil
}

// RenameTemplate renames the outline template card.
func (p *HubPage) RenameTemplate(templateID, name string) error {
	if err := p.TemplateMenu.Click(); err != nil {
		return wrapAction("open template menu", err)
	}
	if err := p.TemplateRename.Click(); err != nil {
		return wrapAction("open rename", err)
	}
	if err := p.TemplateNameEdit.Fill(name); err != nil {
		return wrapAction("fill template name", err)
	}
	_, err := p.Expect(click(p.SaveButton), outlinesPattern+"/"+templateID)
	return err
}

// DeleteTemplate deletes the outline template card.
func (p *HubPage) DeleteTemplate(templateID string) error {
	if err := p.TemplateMenu.Click(); err != nil {
		return wrapAction("open template menu", err)
	}
	if err := p.TemplateDelete.Click(); err != nil {
		return wrapAction("open delete", err)
	}
	_, err := p.Expect(click(p.DeleteButton), outlinesPattern+"/"+templateID)
	return err
}
