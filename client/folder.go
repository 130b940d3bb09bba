package client

import (
	"context"
	"encoding/xml"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/property"
	"github.com/meszmate/ews-go/schema"
	"github.com/meszmate/ews-go/wire"
)

// Folder is a mailbox folder.
type Folder struct {
	*object
}

// NewFolder creates a new folder.
func NewFolder(c *Client) *Folder {
	f := &Folder{object: newObject(c, schema.FolderSchema, schema.FolderID)}
	f.loader = f.load
	f.mutation = f.checkMutation
	return f
}

// BindToFolder fetches the folder with the given id.
func BindToFolder(ctx context.Context, c *Client, id FolderID, ps PropertySet) (*Folder, error) {
	resp, err := c.GetFolders(ctx, []FolderID{id}, ps, ews.ThrowOnFirstError)
	if err != nil {
		return nil, err
	}
	folders := resp.At(0).Folders
	if len(folders) == 0 {
		return nil, &ews.SerializationError{Element: "Folders", Err: errors.New("no folder returned")}
	}
	return folders[0], nil
}

// ID returns the folder's server id.
func (f *Folder) ID() (complex.ID, bool) {
	return f.id()
}

func (f *Folder) folderID() FolderID {
	id, _ := f.ID()
	return FolderIDFrom(id)
}

func (f *Folder) load(ctx context.Context, defs ...*schema.PropertyDefinition) error {
	req := &getFolderRequest{
		client: f.client,
		ids:    []FolderID{f.folderID()},
		shape:  NewPropertySet(IDOnly, defs...),
		into:   []*Folder{f},
	}
	_, err := execute[*FolderResult](ctx, f.client, req, ews.ThrowOnFirstError)
	return err
}

func (f *Folder) checkMutation(def *schema.PropertyDefinition) error {
	if def == schema.FolderClass && !f.IsNew() {
		return &ews.InvalidOperationError{Op: "set " + def.Name, Reason: "folder class is fixed once saved"}
	}
	return nil
}

// DisplayName returns the folder's name.
func (f *Folder) DisplayName(ctx context.Context) (string, error) {
	return f.getString(ctx, schema.DisplayName)
}

// SetDisplayName renames the folder.
func (f *Folder) SetDisplayName(name string) error {
	return f.Set(schema.DisplayName, name)
}

// TotalCount returns the number of items in the folder.
func (f *Folder) TotalCount(ctx context.Context) (int, error) {
	return f.getInt(ctx, schema.TotalCount)
}

// UnreadCount returns the number of unread items in the folder.
func (f *Folder) UnreadCount(ctx context.Context) (int, error) {
	return f.getInt(ctx, schema.UnreadCount)
}

// ChildFolderCount returns the number of subfolders.
func (f *Folder) ChildFolderCount(ctx context.Context) (int, error) {
	return f.getInt(ctx, schema.ChildFolderCount)
}

// Save creates the folder under parent.
func (f *Folder) Save(ctx context.Context, parent FolderID) error {
	_, err := f.client.CreateFolders(ctx, []*Folder{f}, parent, ews.ThrowOnFirstError)
	return err
}

// Update sends the modified properties of a saved folder. It does nothing
// when no property was modified.
func (f *Folder) Update(ctx context.Context) error {
	if f.IsNew() {
		return &ews.InvalidOperationError{Op: "update", Reason: "folder has not been saved"}
	}
	if !f.IsDirty() {
		return nil
	}
	_, err := f.client.UpdateFolders(ctx, []*Folder{f}, ews.ThrowOnFirstError)
	return err
}

// Delete deletes a saved folder.
func (f *Folder) Delete(ctx context.Context, mode DeleteMode) error {
	if f.IsNew() {
		return &ews.InvalidOperationError{Op: "delete", Reason: "folder has not been saved"}
	}
	_, err := f.client.DeleteFolders(ctx, []FolderID{f.folderID()}, mode, ews.ThrowOnFirstError)
	return err
}

// FindItems searches the folder.
func (f *Folder) FindItems(ctx context.Context, filter *complex.Node[complex.Filter], view ItemView) (*FindItemsResult, error) {
	if f.IsNew() {
		return nil, &ews.InvalidOperationError{Op: "find items", Reason: "folder has not been saved"}
	}
	return f.client.FindItems(ctx, f.folderID(), filter, view)
}

// FolderResult is the result for one folder target.
type FolderResult struct {
	ews.ServiceResult
	Folders []*Folder

	client *Client
	target *Folder
}

func (r *FolderResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	if !wire.Is(start.Name, wire.NamespaceMessages, "Folders") {
		return false, nil
	}
	return true, readList(d, start, func(child xml.StartElement) error {
		f, clear := r.target, false
		if f == nil {
			f, clear = NewFolder(r.client), true
		}
		if err := f.bag.LoadFromXML(d, child, clear); err != nil {
			return err
		}
		r.target = nil
		r.Folders = append(r.Folders, f)
		return nil
	})
}

func validateFolderIDs(ids []FolderID) error {
	if len(ids) == 0 {
		return ews.NewValidationError("folder id", "at least one id is required")
	}
	return validateTargets(len(ids), "folder", func(i int) error {
		return ids[i].validate()
	})
}

type getFolderRequest struct {
	client *Client
	ids    []FolderID
	shape  PropertySet
	into   []*Folder
}

func (r *getFolderRequest) action() string          { return "GetFolder" }
func (r *getFolderRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *getFolderRequest) count() int              { return len(r.ids) }

func (r *getFolderRequest) validate(v ews.Version) error {
	if err := validateFolderIDs(r.ids); err != nil {
		return err
	}
	return r.shape.validate(v)
}

func (r *getFolderRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "GetFolder")
	r.shape.write(e, "FolderShape")
	writeFolderIDs(e, wire.NamespaceMessages, "FolderIds", r.ids)
	e.EndElement()
	return e.Err()
}

func (r *getFolderRequest) newResult(i int) *FolderResult {
	res := &FolderResult{client: r.client}
	if i < len(r.into) {
		res.target = r.into[i]
	}
	return res
}

// GetFolders fetches the folders with the given ids, one result per id.
func (c *Client) GetFolders(ctx context.Context, ids []FolderID, shape PropertySet, policy ews.ErrorPolicy) (*Responses[*FolderResult], error) {
	return execute[*FolderResult](ctx, c, &getFolderRequest{client: c, ids: ids, shape: shape}, policy)
}

type createFolderRequest struct {
	client  *Client
	folders []*Folder
	parent  FolderID
}

func (r *createFolderRequest) action() string          { return "CreateFolder" }
func (r *createFolderRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *createFolderRequest) count() int              { return len(r.folders) }

func (r *createFolderRequest) validate(v ews.Version) error {
	if len(r.folders) == 0 {
		return ews.NewValidationError("CreateFolder", "at least one folder is required")
	}
	if err := r.parent.validate(); err != nil {
		return err
	}
	return validateTargets(len(r.folders), "folder", func(i int) error {
		f := r.folders[i]
		if !f.IsNew() {
			return ews.NewValidationError("folder", "already saved")
		}
		if !f.bag.Has(schema.DisplayName) {
			return ews.NewValidationError("folder", "display name is required")
		}
		return f.bag.Validate()
	})
}

func (r *createFolderRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "CreateFolder")
	writeFolderIDs(e, wire.NamespaceMessages, "ParentFolderId", []FolderID{r.parent})
	e.StartElement(wire.NamespaceMessages, "Folders")
	for _, f := range r.folders {
		if err := f.bag.WriteToXML(e, property.WriteFullCreate); err != nil {
			return err
		}
	}
	e.EndElement()
	e.EndElement()
	return e.Err()
}

func (r *createFolderRequest) newResult(i int) *FolderResult {
	return &FolderResult{client: r.client, target: r.folders[i]}
}

func (r *createFolderRequest) complete(results []*FolderResult) {
	for i, res := range results {
		if res.Succeeded() {
			r.folders[i].bag.ClearChangeLog()
		}
	}
}

// CreateFolders creates new folders under parent, one result per folder.
func (c *Client) CreateFolders(ctx context.Context, folders []*Folder, parent FolderID, policy ews.ErrorPolicy) (*Responses[*FolderResult], error) {
	return execute[*FolderResult](ctx, c, &createFolderRequest{client: c, folders: folders, parent: parent}, policy)
}

type updateFolderRequest struct {
	client  *Client
	folders []*Folder
}

func (r *updateFolderRequest) action() string          { return "UpdateFolder" }
func (r *updateFolderRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *updateFolderRequest) count() int              { return len(r.folders) }

func (r *updateFolderRequest) validate(v ews.Version) error {
	if len(r.folders) == 0 {
		return ews.NewValidationError("UpdateFolder", "at least one folder is required")
	}
	return validateTargets(len(r.folders), "folder", func(i int) error {
		f := r.folders[i]
		if f.IsNew() {
			return ews.NewValidationError("folder", "not saved yet")
		}
		return f.bag.Validate()
	})
}

func (r *updateFolderRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "UpdateFolder")
	e.StartElement(wire.NamespaceMessages, "FolderChanges")
	for _, f := range r.folders {
		e.StartElement(wire.NamespaceTypes, "FolderChange")
		f.folderID().write(e)
		e.StartElement(wire.NamespaceTypes, "Updates")
		if err := f.bag.WriteToXML(e, property.WritePatch); err != nil {
			return err
		}
		e.EndElement()
		e.EndElement()
	}
	e.EndElement()
	e.EndElement()
	return e.Err()
}

func (r *updateFolderRequest) newResult(i int) *FolderResult {
	return &FolderResult{client: r.client, target: r.folders[i]}
}

func (r *updateFolderRequest) complete(results []*FolderResult) {
	for i, res := range results {
		if res.Succeeded() {
			r.folders[i].bag.ClearChangeLog()
		}
	}
}

// UpdateFolders sends the modified properties of saved folders, one
// result per folder.
func (c *Client) UpdateFolders(ctx context.Context, folders []*Folder, policy ews.ErrorPolicy) (*Responses[*FolderResult], error) {
	return execute[*FolderResult](ctx, c, &updateFolderRequest{client: c, folders: folders}, policy)
}

type deleteFolderRequest struct {
	ids  []FolderID
	mode DeleteMode
}

func (r *deleteFolderRequest) action() string          { return "DeleteFolder" }
func (r *deleteFolderRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *deleteFolderRequest) count() int              { return len(r.ids) }

func (r *deleteFolderRequest) validate(v ews.Version) error {
	switch r.mode {
	case HardDelete, SoftDelete, MoveToDeletedItems:
	default:
		return ews.NewValidationError("DeleteFolder", "unknown delete mode %q", r.mode)
	}
	return validateFolderIDs(r.ids)
}

func (r *deleteFolderRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "DeleteFolder").Attr("DeleteType", string(r.mode))
	writeFolderIDs(e, wire.NamespaceMessages, "FolderIds", r.ids)
	e.EndElement()
	return e.Err()
}

func (r *deleteFolderRequest) newResult(int) *StatusResult {
	return &StatusResult{}
}

// DeleteFolders deletes the folders with the given ids, one result per id.
func (c *Client) DeleteFolders(ctx context.Context, ids []FolderID, mode DeleteMode, policy ews.ErrorPolicy) (*Responses[*StatusResult], error) {
	return execute[*StatusResult](ctx, c, &deleteFolderRequest{ids: ids, mode: mode}, policy)
}
