package pinning

import (
	"context"
	"fmt"
	"io"
)

// Attribute is an ERC-721 metadata trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the ERC-721 metadata document of a gift card.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// GiftCardMetadata builds the metadata document of a card worth amount
// currency whose artwork is stored at imageURI.
func GiftCardMetadata(amount, currency, message, design, imageURI string) *Metadata {
	return &Metadata{
		Name:        fmt.Sprintf("Gift Card - %s %s", amount, currency),
		Description: fmt.Sprintf("A digital gift card worth %s %s. %s", amount, currency, message),
		Image:       imageURI,
		Attributes: []Attribute{
			{TraitType: "Amount", Value: amount},
			{TraitType: "Currency", Value: currency},
			{TraitType: "Design", Value: design},
			{TraitType: "Message", Value: message},
		},
	}
}

// PinGiftCard uploads the card artwork, then its metadata, and returns the
// metadata URI to use as the token URI.
func PinGiftCard(
	ctx context.Context,
	pinner Pinner,
	amount, currency, message, design string,
	imageName string,
	image io.Reader,
) (string, error) {
	imageURI, err := pinner.PinFile(ctx, imageName, image)
	if err != nil {
		return "", fmt.Errorf("pinning gift card image: %w", err)
	}

	metadata := GiftCardMetadata(amount, currency, message, design, imageURI)
	uri, err := pinner.PinJSON(ctx, metadata.Name, metadata)
	if err != nil {
		return "", fmt.Errorf("pinning gift card metadata: %w", err)
	}
	return uri, nil
}
