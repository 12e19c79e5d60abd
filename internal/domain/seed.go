package domain

// SeedQuestions is the sample bank materialised when no question table exists.
func SeedQuestions() []Question {
	return []Question{
		{
			Question: "Which of these is NOT one of the four parts in traditional hymn singing?",
			OptionA:  "Soprano", OptionB: "Alto", OptionC: "Tenor", OptionD: "Baritone",
			Correct: ChoiceD,
		},
		{
			Question: "Who composed 'Amazing Grace'?",
			OptionA:  "John Newton", OptionB: "Charles Wesley", OptionC: "Isaac Watts", OptionD: "Fanny Crosby",
			Correct: ChoiceA,
		},
		{
			Question: "What instrument is traditionally used to lead congregational singing?",
			OptionA:  "Piano", OptionB: "Guitar", OptionC: "Organ", OptionD: "Trumpet",
			Correct: ChoiceC,
		},
		{
			Question: "Which book of the Bible contains most of the Psalms?",
			OptionA:  "Proverbs", OptionB: "Psalms", OptionC: "Ecclesiastes", OptionD: "Song of Solomon",
			Correct: ChoiceB,
		},
		{
			Question: "What is the term for a song of praise to God?",
			OptionA:  "Hymn", OptionB: "Anthem", OptionC: "Spiritual", OptionD: "Carol",
			Correct: ChoiceA,
		},
	}
}
