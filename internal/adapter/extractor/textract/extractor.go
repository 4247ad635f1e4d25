// Package textract reads cheque fields with Amazon Textract queries and
// locates the drawer's signature with the SIGNATURES feature.
package textract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

// Query aliases.
const (
	AliasPayeeName     = "payee_name"
	AliasAmount        = "amount"
	AliasDate          = "date"
	AliasAccountNumber = "account_number"
	AliasBankName      = "bank_name"
	AliasRoutingCode   = "ifs_code"
	AliasChequeNumber  = "cheque_number"
)

// DefaultQueries is the question set asked of every cheque.
var DefaultQueries = []types.Query{
	{Text: aws.String("What is the name of the payee?"), Alias: aws.String(AliasPayeeName)},
	{Text: aws.String("What is the amount paid? (in numeric)"), Alias: aws.String(AliasAmount)},
	{Text: aws.String("What is the date of the cheque? (at the top right corner)"), Alias: aws.String(AliasDate)},
	{Text: aws.String("What is the account number?"), Alias: aws.String(AliasAccountNumber)},
	{Text: aws.String("What is the bank name?"), Alias: aws.String(AliasBankName)},
	{Text: aws.String("What is the IFS code?"), Alias: aws.String(AliasRoutingCode)},
	{
		Text:  aws.String("What is the cheque number? The second part of the number at the center bottom of the cheque and it contains 9 digits."),
		Alias: aws.String(AliasChequeNumber),
	},
}

// transientCodes are Textract error codes worth retrying.
var transientCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"LimitExceededException":                 true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"RequestTimeout":                         true,
}

// API is the subset of the Textract client the extractor uses.
type API interface {
	AnalyzeDocument(ctx context.Context, params *awstextract.AnalyzeDocumentInput, optFns ...func(*awstextract.Options)) (*awstextract.AnalyzeDocumentOutput, error)
}

// Extractor implements usecase.Extractor with synchronous AnalyzeDocument calls.
type Extractor struct {
	api   API
	blobs usecase.BlobStore
}

// New creates an Extractor. Images stored in S3 are referenced in place; any
// other handle is read through blobs and sent inline.
func New(api API, blobs usecase.BlobStore) *Extractor {
	return &Extractor{api: api, blobs: blobs}
}

// NewFromConfig creates an Extractor backed by a real Textract client.
func NewFromConfig(cfg aws.Config, blobs usecase.BlobStore) *Extractor {
	return New(awstextract.NewFromConfig(cfg), blobs)
}

// Extract implements usecase.Extractor.
func (e *Extractor) Extract(ctx context.Context, imageHandle string) (*domain.ExtractedFields, error) {
	document, err := e.document(ctx, imageHandle)
	if err != nil {
		return nil, err
	}

	out, err := e.api.AnalyzeDocument(ctx, &awstextract.AnalyzeDocumentInput{
		Document:      document,
		FeatureTypes:  []types.FeatureType{types.FeatureTypeQueries, types.FeatureTypeSignatures},
		QueriesConfig: &types.QueriesConfig{Queries: DefaultQueries},
	})
	if err != nil {
		return nil, classify(err)
	}

	return Parse(out)
}

func (e *Extractor) document(ctx context.Context, handle string) (*types.Document, error) {
	if rest, ok := strings.CutPrefix(handle, "s3://"); ok {
		bucket, key, ok := strings.Cut(rest, "/")
		if ok && bucket != "" && key != "" {
			return &types.Document{S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)}}, nil
		}
	}

	data, err := e.blobs.Get(ctx, handle)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return nil, domain.NewPermanentExtractionError(err)
	}
	if err != nil {
		return nil, domain.NewTransientExtractionError(err)
	}
	return &types.Document{Bytes: data}, nil
}

// rawResponse is the audit copy of a Textract answer.
type rawResponse struct {
	DocumentMetadata            *types.DocumentMetadata `json:"DocumentMetadata,omitempty"`
	AnalyzeDocumentModelVersion *string                 `json:"AnalyzeDocumentModelVersion,omitempty"`
	Blocks                      []types.Block           `json:"Blocks"`
}

// Parse maps an AnalyzeDocument answer onto ExtractedFields. A missing or
// unreadable amount is a permanent extraction failure whose error still carries
// every other field and the raw response; those fields may be empty.
func Parse(out *awstextract.AnalyzeDocumentOutput) (*domain.ExtractedFields, error) {
	answers := queryAnswers(out.Blocks)

	fields := &domain.ExtractedFields{
		PayeeName:           strings.TrimSpace(answers[AliasPayeeName]),
		ChequeDateRaw:       answers[AliasDate],
		SourceAccountNumber: domain.NormalizeAccountNumber(answers[AliasAccountNumber]),
		RoutingCode:         strings.ToUpper(strings.TrimSpace(answers[AliasRoutingCode])),
		ChequeNumber:        strings.TrimSpace(answers[AliasChequeNumber]),
		BankName:            strings.TrimSpace(answers[AliasBankName]),
		SignatureBox:        signatureBox(out.Blocks),
	}
	if date, err := domain.ParseChequeDate(fields.ChequeDateRaw); err == nil {
		fields.ChequeDate = &date
	}

	raw, err := json.Marshal(rawResponse{
		DocumentMetadata:            out.DocumentMetadata,
		AnalyzeDocumentModelVersion: out.AnalyzeDocumentModelVersion,
		Blocks:                      out.Blocks,
	})
	if err == nil {
		fields.RawResponse = raw
	}

	rawAmount, ok := answers[AliasAmount]
	if !ok {
		return nil, domain.NewIncompleteExtractionError(errors.New("no amount found on cheque"), fields)
	}
	amount, err := domain.ParseChequeAmount(rawAmount)
	if err != nil {
		return nil, domain.NewIncompleteExtractionError(fmt.Errorf("amount %q: %w", rawAmount, err), fields)
	}
	fields.Amount = amount

	return fields, nil
}

// queryAnswers resolves every QUERY block to the text of its most confident answer.
func queryAnswers(blocks []types.Block) map[string]string {
	byID := make(map[string]types.Block, len(blocks))
	for _, b := range blocks {
		if b.Id != nil {
			byID[*b.Id] = b
		}
	}

	answers := make(map[string]string)
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeQuery || b.Query == nil || b.Query.Alias == nil {
			continue
		}

		var best *types.Block
		for _, rel := range b.Relationships {
			if rel.Type != types.RelationshipTypeAnswer {
				continue
			}
			for _, id := range rel.Ids {
				answer, ok := byID[id]
				if !ok || answer.Text == nil {
					continue
				}
				if best == nil || aws.ToFloat32(answer.Confidence) > aws.ToFloat32(best.Confidence) {
					best = &answer
				}
			}
		}
		if best != nil {
			answers[*b.Query.Alias] = aws.ToString(best.Text)
		}
	}
	return answers
}

// signatureBox returns the most confident SIGNATURE region, or nil.
func signatureBox(blocks []types.Block) *domain.BoundingBox {
	var box *domain.BoundingBox
	var confidence float32 = -1

	for _, b := range blocks {
		if b.BlockType != types.BlockTypeSignature || b.Geometry == nil || b.Geometry.BoundingBox == nil {
			continue
		}
		if c := aws.ToFloat32(b.Confidence); c > confidence {
			bb := b.Geometry.BoundingBox
			confidence = c
			box = &domain.BoundingBox{
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}
	}
	return box
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return domain.NewTransientExtractionError(err)
		}
		return domain.NewPermanentExtractionError(err)
	}
	// Transport failures and timeouts.
	return domain.NewTransientExtractionError(err)
}
