package migrations

import (
	"context"

	"church-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	Question string `bun:"question"`
	OptionA  string `bun:"option_a"`
	OptionB  string `bun:"option_b"`
	OptionC  string `bun:"option_c"`
	OptionD  string `bun:"option_d"`
	Correct  string `bun:"correct"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			n, err := db.NewSelect().Model((*questionRow)(nil)).Count(ctx)
			if err != nil || n > 0 {
				return err
			}
			seed := domain.SeedQuestions()
			rows := make([]questionRow, len(seed))
			for i, q := range seed {
				rows[i] = questionRow{
					Question: q.Question,
					OptionA:  q.OptionA,
					OptionB:  q.OptionB,
					OptionC:  q.OptionC,
					OptionD:  q.OptionD,
					Correct:  string(q.Correct),
				}
			}
			_, err = db.NewInsert().Model(&rows).Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `TRUNCATE questions`)
			return err
		},
	)
}
