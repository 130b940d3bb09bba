package schema

import (
	ews "github.com/meszmate/ews-go"
)

// Kinds of the built-in schemas.
var (
	ItemKind         = Kind{Element: "Item", SetField: "SetItemField", DeleteField: "DeleteItemField"}
	MessageKind      = Kind{Element: "Message", SetField: "SetItemField", DeleteField: "DeleteItemField"}
	CalendarItemKind = Kind{Element: "CalendarItem", SetField: "SetItemField", DeleteField: "DeleteItemField"}
	FolderKind       = Kind{Element: "Folder", SetField: "SetFolderField", DeleteField: "DeleteFolderField"}
)

// Item properties.
var (
	ItemID                 = Define("ItemId", "item:ItemId", ReadOnly, Complex("ItemId"))
	ItemParentFolderID     = Define("ParentFolderId", "item:ParentFolderId", ReadOnly, Complex("ParentFolderId"))
	ItemClass              = Define("ItemClass", "item:ItemClass", CanFind|CanSet|CanUpdate, String)
	Subject                = Define("Subject", "item:Subject", Writable, String)
	Sensitivity            = Define("Sensitivity", "item:Sensitivity", Writable, Enum("Normal", "Personal", "Private", "Confidential"))
	Body                   = Define("Body", "item:Body", CanSet|CanUpdate|CanDelete, Complex("Body"))
	DateTimeReceived       = Define("DateTimeReceived", "item:DateTimeReceived", ReadOnly, DateTime)
	Size                   = Define("Size", "item:Size", ReadOnly, Int)
	Categories             = Define("Categories", "item:Categories", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("Categories"))
	Importance             = Define("Importance", "item:Importance", Writable, Enum("Low", "Normal", "High"))
	IsDraft                = Define("IsDraft", "item:IsDraft", ReadOnly, Bool)
	InternetMessageHeaders = Define("InternetMessageHeaders", "item:InternetMessageHeaders", ReadOnly, Complex("InternetMessageHeaders"))
	DateTimeCreated        = Define("DateTimeCreated", "item:DateTimeCreated", ReadOnly, DateTime)
	LastModifiedTime       = Define("LastModifiedTime", "item:LastModifiedTime", ReadOnly, DateTime).Since(ews.Exchange2010)
	ConversationID         = Define("ConversationId", "item:ConversationId", ReadOnly, Complex("ConversationId")).Since(ews.Exchange2010)
)

// ItemSchema holds the properties shared by every item kind.
var ItemSchema = New(ItemKind,
	ItemID,
	ItemParentFolderID,
	ItemClass,
	Subject,
	Sensitivity,
	Body,
	DateTimeReceived,
	Size,
	Categories,
	Importance,
	IsDraft,
	InternetMessageHeaders,
	DateTimeCreated,
	LastModifiedTime,
	ConversationID,
)

// Message properties.
var (
	Sender                 = Define("Sender", "message:Sender", Writable, Complex("Sender"))
	ToRecipients           = Define("ToRecipients", "message:ToRecipients", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("ToRecipients"))
	CcRecipients           = Define("CcRecipients", "message:CcRecipients", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("CcRecipients"))
	BccRecipients          = Define("BccRecipients", "message:BccRecipients", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("BccRecipients"))
	IsReadReceiptRequested = Define("IsReadReceiptRequested", "message:IsReadReceiptRequested", Writable, Bool)
	From                   = Define("From", "message:From", Writable, Complex("From"))
	InternetMessageID      = Define("InternetMessageId", "message:InternetMessageId", ReadOnly, String)
	IsRead                 = Define("IsRead", "message:IsRead", CanFind|CanSet|CanUpdate, Bool)
)

// MessageSchema describes mail messages.
var MessageSchema = Extend(ItemSchema, MessageKind,
	Sender,
	ToRecipients,
	CcRecipients,
	BccRecipients,
	IsReadReceiptRequested,
	From,
	InternetMessageID,
	IsRead,
)

// Calendar item properties.
var (
	Start                = Define("Start", "calendar:Start", CanFind|CanSet|CanUpdate, DateTime)
	End                  = Define("End", "calendar:End", CanFind|CanSet|CanUpdate, DateTime)
	IsAllDayEvent        = Define("IsAllDayEvent", "calendar:IsAllDayEvent", Writable, Bool)
	Location             = Define("Location", "calendar:Location", Writable, String)
	Organizer            = Define("Organizer", "calendar:Organizer", ReadOnly, Complex("From"))
	RequiredAttendees    = Define("RequiredAttendees", "calendar:RequiredAttendees", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("RequiredAttendees"))
	OptionalAttendees    = Define("OptionalAttendees", "calendar:OptionalAttendees", Writable|AutoInstantiateOnRead|MustBeExplicitlySet, Complex("OptionalAttendees"))
	Recurrence           = Define("Recurrence", "calendar:Recurrence", CanSet|CanUpdate|CanDelete, Complex("Recurrence"))
	JoinOnlineMeetingURL = Define("JoinOnlineMeetingUrl", "calendar:JoinOnlineMeetingUrl", ReadOnly, String).Since(ews.Exchange2013)
)

// CalendarItemSchema describes appointments and meetings.
var CalendarItemSchema = Extend(ItemSchema, CalendarItemKind,
	Start,
	End,
	IsAllDayEvent,
	Location,
	Organizer,
	RequiredAttendees,
	OptionalAttendees,
	Recurrence,
	JoinOnlineMeetingURL,
)

// Folder properties.
var (
	FolderID             = Define("FolderId", "folder:FolderId", ReadOnly, Complex("FolderId"))
	FolderParentFolderID = Define("ParentFolderId", "folder:ParentFolderId", ReadOnly, Complex("ParentFolderId"))
	FolderClass          = Define("FolderClass", "folder:FolderClass", CanFind|CanSet|CanUpdate, String)
	DisplayName          = Define("DisplayName", "folder:DisplayName", CanFind|CanSet|CanUpdate, String)
	TotalCount           = Define("TotalCount", "folder:TotalCount", ReadOnly, Int)
	ChildFolderCount     = Define("ChildFolderCount", "folder:ChildFolderCount", ReadOnly, Int)
	UnreadCount          = Define("UnreadCount", "folder:UnreadCount", ReadOnly, Int)
)

// FolderSchema describes mail folders.
var FolderSchema = New(FolderKind,
	FolderID,
	FolderParentFolderID,
	FolderClass,
	DisplayName,
	TotalCount,
	ChildFolderCount,
	UnreadCount,
)
