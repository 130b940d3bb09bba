package ewstest

import (
	"strings"

	ews "github.com/meszmate/ews-go"
)

const header = `<s:Header><h:ServerVersionInfo MajorVersion="15" MinorVersion="1" MajorBuildNumber="2507" MinorBuildNumber="6" Version="V2017_07_11" xmlns:h="http://schemas.microsoft.com/exchange/services/2006/types"/></s:Header>`

// Envelope wraps payload in a response envelope with a version header.
func Envelope(payload string) string {
	return `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">` + header +
		`<s:Body>` + payload + `</s:Body></s:Envelope>`
}

// Response builds the envelope of an action's response from its response
// messages. The m and t prefixes are declared.
func Response(action string, messages ...string) string {
	return Envelope(`<m:` + action + `Response xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages" xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">` +
		`<m:ResponseMessages>` + strings.Join(messages, "") + `</m:ResponseMessages></m:` + action + `Response>`)
}

// Success builds a successful response message.
func Success(action, payload string) string {
	return `<m:` + action + `ResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		payload + `</m:` + action + `ResponseMessage>`
}

// Failure builds a failed response message. payload is appended after
// the status fields.
func Failure(action string, code ews.ResponseCode, text, payload string) string {
	return `<m:` + action + `ResponseMessage ResponseClass="Error"><m:MessageText>` + text + `</m:MessageText>` +
		`<m:ResponseCode>` + string(code) + `</m:ResponseCode>` + payload +
		`</m:` + action + `ResponseMessage>`
}

// Fault builds a SOAP fault envelope.
func Fault(code ews.ResponseCode, text string) string {
	return Envelope(`<s:Fault><faultcode>s:Client</faultcode><faultstring>` + text + `</faultstring>` +
		`<detail><e:ResponseCode xmlns:e="http://schemas.microsoft.com/exchange/services/2006/errors">` + string(code) +
		`</e:ResponseCode><e:Message xmlns:e="http://schemas.microsoft.com/exchange/services/2006/errors">` + text +
		`</e:Message></detail></s:Fault>`)
}

// KeepAlive is the envelope a server sends to keep a stream open.
func KeepAlive() string {
	return Response("GetStreamingEvents", Success("GetStreamingEvents", `<m:ConnectionStatus>OK</m:ConnectionStatus>`))
}

// StreamClosed is the envelope a server sends before ending a stream.
func StreamClosed() string {
	return Response("GetStreamingEvents", Success("GetStreamingEvents", `<m:ConnectionStatus>Closed</m:ConnectionStatus>`))
}

// NewMail is an envelope carrying one new mail event for subscription.
func NewMail(subscription, itemID string) string {
	return Response("GetStreamingEvents", Success("GetStreamingEvents",
		`<m:Notifications><m:Notification><t:SubscriptionId>`+subscription+`</t:SubscriptionId>`+
			`<t:NewMailEvent><t:TimeStamp>2024-05-01T10:00:00Z</t:TimeStamp>`+
			`<t:ItemId Id="`+itemID+`" ChangeKey="ck"/><t:ParentFolderId Id="inbox" ChangeKey="f"/></t:NewMailEvent>`+
			`</m:Notification></m:Notifications>`))
}

// SubscriptionFailed is an envelope reporting code for subscriptions.
func SubscriptionFailed(code ews.ResponseCode, subscriptions ...string) string {
	var ids strings.Builder
	for _, id := range subscriptions {
		ids.WriteString(`<m:SubscriptionId>` + id + `</m:SubscriptionId>`)
	}
	return Response("GetStreamingEvents", Failure("GetStreamingEvents", code, "subscription failed",
		`<m:ErrorSubscriptionIds>`+ids.String()+`</m:ErrorSubscriptionIds>`))
}
