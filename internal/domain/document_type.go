package domain

import "time"

// DocumentType is a tax document type that can be financed (e.g. 33 electronic invoice)
type DocumentType struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultDocumentType is the electronic invoice code
const DefaultDocumentType = "33"

// DocumentTypeListResponse represents the response for listing document types
type DocumentTypeListResponse struct {
	DocumentTypes []DocumentType `json:"document_types"`
}
