package client

import (
	"context"
	"encoding/xml"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/property"
	"github.com/meszmate/ews-go/schema"
	"github.com/meszmate/ews-go/wire"
)

// completer is implemented by requests that update their targets once
// the results are known.
type completer[R Result] interface {
	complete(results []R)
}

// StatusResult is a result that carries only a status.
type StatusResult struct {
	ews.ServiceResult
}

func (r *StatusResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	return false, nil
}

// ItemResult is the result for one item target.
type ItemResult struct {
	ews.ServiceResult
	// Items holds the returned items. For calls on existing objects the
	// first item is the target itself.
	Items []*Item

	client *Client
	target *Item
}

func (r *ItemResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	if !wire.Is(start.Name, wire.NamespaceMessages, "Items") {
		return false, nil
	}
	return true, readList(d, start, func(child xml.StartElement) error {
		it, err := r.client.readItem(d, child, r.target)
		if err != nil {
			return err
		}
		r.target = nil
		r.Items = append(r.Items, it)
		return nil
	})
}

// readItem loads the item element opened by start. A non-nil target is
// merged into; otherwise a new item of the element's kind is created.
func (c *Client) readItem(d *wire.Decoder, start xml.StartElement, target *Item) (*Item, error) {
	it, clear := target, false
	if it == nil {
		it, clear = newItem(c, itemSchemaFor(start.Name.Local)), true
	}
	if err := it.bag.LoadFromXML(d, start, clear); err != nil {
		return nil, err
	}
	return it, nil
}

type getItemRequest struct {
	client *Client
	ids    []complex.ID
	shape  PropertySet
	into   []*Item
}

func (r *getItemRequest) action() string          { return "GetItem" }
func (r *getItemRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *getItemRequest) count() int              { return len(r.ids) }

func (r *getItemRequest) validate(v ews.Version) error {
	if err := validateIDs("item id", r.ids); err != nil {
		return err
	}
	return r.shape.validate(v)
}

func (r *getItemRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "GetItem")
	r.shape.write(e, "ItemShape")
	if err := writeIDs(e, "ItemIds", r.ids); err != nil {
		return err
	}
	e.EndElement()
	return e.Err()
}

func (r *getItemRequest) newResult(i int) *ItemResult {
	res := &ItemResult{client: r.client}
	if i < len(r.into) {
		res.target = r.into[i]
	}
	return res
}

// GetItems fetches the items with the given ids, one result per id.
func (c *Client) GetItems(ctx context.Context, ids []complex.ID, shape PropertySet, policy ews.ErrorPolicy) (*Responses[*ItemResult], error) {
	return execute[*ItemResult](ctx, c, &getItemRequest{client: c, ids: ids, shape: shape}, policy)
}

type createItemRequest struct {
	client      *Client
	items       []*Item
	parent      FolderID
	disposition MessageDisposition
	invitations SendInvitations
}

func (r *createItemRequest) action() string          { return "CreateItem" }
func (r *createItemRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *createItemRequest) count() int              { return len(r.items) }

func (r *createItemRequest) validate(v ews.Version) error {
	if len(r.items) == 0 {
		return ews.NewValidationError("CreateItem", "at least one item is required")
	}
	if r.parent != (FolderID{}) {
		if err := r.parent.validate(); err != nil {
			return err
		}
	}
	return validateTargets(len(r.items), "item", func(i int) error {
		it := r.items[i]
		if !it.IsNew() {
			return ews.NewValidationError("item", "already saved")
		}
		return it.validate()
	})
}

func (r *createItemRequest) writeBody(e *wire.Encoder) error {
	disposition, invitations := r.disposition, r.invitations
	for _, it := range r.items {
		switch it.schema {
		case schema.MessageSchema:
			if disposition == "" {
				disposition = SaveOnly
			}
		case schema.CalendarItemSchema:
			if invitations == "" {
				invitations = SendToNone
			}
		}
	}

	e.StartElement(wire.NamespaceMessages, "CreateItem")
	if disposition != "" {
		e.Attr("MessageDisposition", string(disposition))
	}
	if invitations != "" {
		e.Attr("SendMeetingInvitations", string(invitations))
	}
	if r.parent != (FolderID{}) {
		writeFolderIDs(e, wire.NamespaceMessages, "SavedItemFolderId", []FolderID{r.parent})
	}
	e.StartElement(wire.NamespaceMessages, "Items")
	for _, it := range r.items {
		if err := it.bag.WriteToXML(e, property.WriteFullCreate); err != nil {
			return err
		}
	}
	e.EndElement()
	e.EndElement()
	return e.Err()
}

func (r *createItemRequest) newResult(i int) *ItemResult {
	return &ItemResult{client: r.client, target: r.items[i]}
}

func (r *createItemRequest) complete(results []*ItemResult) {
	for i, res := range results {
		if res.Succeeded() {
			r.items[i].bag.ClearChangeLog()
		}
	}
}

// CreateItems saves new items in parent, one result per item. Items that
// were created get their server id and a clean change log.
func (c *Client) CreateItems(ctx context.Context, items []*Item, parent FolderID, policy ews.ErrorPolicy) (*Responses[*ItemResult], error) {
	return execute[*ItemResult](ctx, c, &createItemRequest{client: c, items: items, parent: parent}, policy)
}

type updateItemRequest struct {
	client      *Client
	items       []*Item
	conflict    ConflictResolution
	disposition MessageDisposition
	invitations SendInvitations
}

func (r *updateItemRequest) action() string          { return "UpdateItem" }
func (r *updateItemRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *updateItemRequest) count() int              { return len(r.items) }

func (r *updateItemRequest) validate(v ews.Version) error {
	if len(r.items) == 0 {
		return ews.NewValidationError("UpdateItem", "at least one item is required")
	}
	return validateTargets(len(r.items), "item", func(i int) error {
		it := r.items[i]
		if it.IsNew() {
			return ews.NewValidationError("item", "not saved yet")
		}
		return it.validate()
	})
}

func (r *updateItemRequest) writeBody(e *wire.Encoder) error {
	conflict := r.conflict
	if conflict == "" {
		conflict = AutoResolve
	}
	disposition, invitations := r.disposition, r.invitations
	for _, it := range r.items {
		switch it.schema {
		case schema.MessageSchema:
			if disposition == "" {
				disposition = SaveOnly
			}
		case schema.CalendarItemSchema:
			if invitations == "" {
				invitations = SendToNone
			}
		}
	}

	e.StartElement(wire.NamespaceMessages, "UpdateItem").Attr("ConflictResolution", string(conflict))
	if disposition != "" {
		e.Attr("MessageDisposition", string(disposition))
	}
	if invitations != "" {
		e.Attr("SendMeetingInvitationsOrCancellations", string(invitations))
	}
	e.StartElement(wire.NamespaceMessages, "ItemChanges")
	for _, it := range r.items {
		id, _ := it.ID()
		e.StartElement(wire.NamespaceTypes, "ItemChange")
		if err := complex.NewID(id.ID, id.ChangeKey).WriteToXML(e, wire.NamespaceTypes, "ItemId"); err != nil {
			return err
		}
		e.StartElement(wire.NamespaceTypes, "Updates")
		if err := it.bag.WriteToXML(e, property.WritePatch); err != nil {
			return err
		}
		e.EndElement()
		e.EndElement()
	}
	e.EndElement()
	e.EndElement()
	return e.Err()
}

func (r *updateItemRequest) newResult(i int) *ItemResult {
	return &ItemResult{client: r.client, target: r.items[i]}
}

func (r *updateItemRequest) complete(results []*ItemResult) {
	for i, res := range results {
		if res.Succeeded() {
			r.items[i].bag.ClearChangeLog()
		}
	}
}

// UpdateItems sends the modified properties of saved items as patches,
// one result per item. conflict defaults to AutoResolve.
func (c *Client) UpdateItems(ctx context.Context, items []*Item, conflict ConflictResolution, policy ews.ErrorPolicy) (*Responses[*ItemResult], error) {
	return execute[*ItemResult](ctx, c, &updateItemRequest{client: c, items: items, conflict: conflict}, policy)
}

type deleteItemRequest struct {
	ids  []complex.ID
	mode DeleteMode
}

func (r *deleteItemRequest) action() string          { return "DeleteItem" }
func (r *deleteItemRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *deleteItemRequest) count() int              { return len(r.ids) }

func (r *deleteItemRequest) validate(v ews.Version) error {
	switch r.mode {
	case HardDelete, SoftDelete, MoveToDeletedItems:
	default:
		return ews.NewValidationError("DeleteItem", "unknown delete mode %q", r.mode)
	}
	return validateIDs("item id", r.ids)
}

func (r *deleteItemRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "DeleteItem").
		Attr("DeleteType", string(r.mode)).
		Attr("SendMeetingCancellations", string(SendToNone)).
		Attr("AffectedTaskOccurrences", "AllOccurrences")
	if err := writeIDs(e, "ItemIds", r.ids); err != nil {
		return err
	}
	e.EndElement()
	return e.Err()
}

func (r *deleteItemRequest) newResult(int) *StatusResult {
	return &StatusResult{}
}

// DeleteItems deletes the items with the given ids, one result per id.
func (c *Client) DeleteItems(ctx context.Context, ids []complex.ID, mode DeleteMode, policy ews.ErrorPolicy) (*Responses[*StatusResult], error) {
	return execute[*StatusResult](ctx, c, &deleteItemRequest{ids: ids, mode: mode}, policy)
}

// FindItemsResult is one page of a search.
type FindItemsResult struct {
	ews.ServiceResult
	Items []*Item
	// TotalCount is the number of items matching the search.
	TotalCount int
	// MoreAvailable is true when later pages exist.
	MoreAvailable bool
	// NextOffset is the offset of the next page.
	NextOffset int

	client *Client
}

func (r *FindItemsResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	if !wire.Is(start.Name, wire.NamespaceMessages, "RootFolder") {
		return false, nil
	}
	var err error
	if r.TotalCount, err = intAttr(start, "TotalItemsInView"); err != nil {
		return true, err
	}
	last, err := boolAttr(start, "IncludesLastItemInRange")
	if err != nil {
		return true, err
	}
	r.MoreAvailable = !last
	if r.NextOffset, err = intAttr(start, "IndexedPagingOffset"); err != nil {
		return true, err
	}
	return true, readList(d, start, func(child xml.StartElement) error {
		if !wire.Is(child.Name, wire.NamespaceTypes, "Items") {
			return d.Skip(child)
		}
		return readList(d, child, func(el xml.StartElement) error {
			it, err := r.client.readItem(d, el, nil)
			if err != nil {
				return err
			}
			r.Items = append(r.Items, it)
			return nil
		})
	})
}

type findItemRequest struct {
	client  *Client
	folders []FolderID
	filter  *complex.Node[complex.Filter]
	view    ItemView
}

func (r *findItemRequest) action() string          { return "FindItem" }
func (r *findItemRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *findItemRequest) count() int              { return len(r.folders) }

func (r *findItemRequest) validate(v ews.Version) error {
	if len(r.folders) == 0 {
		return ews.NewValidationError("FindItem", "at least one folder is required")
	}
	if err := validateTargets(len(r.folders), "folder", func(i int) error {
		return r.folders[i].validate()
	}); err != nil {
		return err
	}
	if r.filter != nil {
		if err := r.filter.Validate(); err != nil {
			return err
		}
	}
	return r.view.validate(v)
}

func (r *findItemRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "FindItem").Attr("Traversal", string(r.view.traversal()))
	r.view.shape().write(e, "ItemShape")
	r.view.write(e)
	if r.filter != nil {
		e.StartElement(wire.NamespaceMessages, "Restriction")
		if err := complex.WriteFilter(e, r.filter); err != nil {
			return err
		}
		e.EndElement()
	}
	writeFolderIDs(e, wire.NamespaceMessages, "ParentFolderIds", r.folders)
	e.EndElement()
	return e.Err()
}

func (r *findItemRequest) newResult(int) *FindItemsResult {
	return &FindItemsResult{client: r.client}
}

// FindItems searches folder for items matching filter. A nil filter
// matches every item.
func (c *Client) FindItems(ctx context.Context, folder FolderID, filter *complex.Node[complex.Filter], view ItemView) (*FindItemsResult, error) {
	req := &findItemRequest{client: c, folders: []FolderID{folder}, filter: filter, view: view}
	resp, err := execute[*FindItemsResult](ctx, c, req, ews.ThrowOnFirstError)
	if err != nil {
		return nil, err
	}
	return resp.At(0), nil
}
