package dynamo

// DynamoDB attribute and index names shared across repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrIdentityID      = "identity_id"
	attrKind            = "kind"
	attrCredentialHash  = "credential_hash"
	attrRecipientID     = "recipient_id"
	attrDeliveryAddress = "delivery_address"
	attrChildren        = "children"
	attrChildIDs        = "child_ids"
	attrAddress         = "address"
	attrBoundAt         = "bound_at"
	attrNotificationID  = "notification_id"
	attrSent            = "sent"
	attrCreatedAt       = "created_at"
	attrUpdatedAt       = "updated_at"

	indexKind                    = "kind-index"
	indexRecipientByNotification = "recipient_id-notification_id-index"
)
