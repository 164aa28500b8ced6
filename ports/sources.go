package ports

import (
	"context"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/storage"
)

// AssociationSource yields the ranked variance-QTL mapping results
type AssociationSource interface {
	// TopAssociations returns the n records with the smallest p_beta
	TopAssociations(ctx context.Context, n int) ([]vqtl.Association, error)
}

// GenotypeRepository provides read access to stored genotype dosages
type GenotypeRepository interface {
	// DosagesForGene returns the dosage of every individual at the lead
	// variant of gene, in store order. Zero rows is a NOT_FOUND error.
	DosagesForGene(ctx context.Context, gene string) (vqtl.GenotypeTable, error)
}

// PosteriorSource yields the per-individual MCMC draws
type PosteriorSource interface {
	LoadSamples(ctx context.Context) (vqtl.SampleSet, error)
}

// BlobBacked is implemented by sources read from a blob store. The metadata
// identifies the exact object a snapshot was built from.
type BlobBacked interface {
	Provenance(ctx context.Context) (*storage.BlobMetadata, error)
}
